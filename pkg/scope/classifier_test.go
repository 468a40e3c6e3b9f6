package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := New(DefaultKeywords())

	tests := []struct {
		name     string
		question string
		inScope  bool
		category Category
	}{
		{"dosing with drug", "Qual a dose de rifampicina para adultos?", true, CategoryDosing},
		{"safety", "Quais os efeitos colaterais da clofazimina?", true, CategorySafety},
		{"interaction", "A dapsona interage com anticoncepcional?", true, CategoryInteraction},
		{"procedure", "Como armazenar os blisters de PQT-U?", true, CategoryProcedure},
		{"general", "O que é hanseníase?", true, CategoryGeneral},
		{"uppercase", "QUAL A DOSE DE RIFAMPICINA?", true, CategoryDosing},
		{"unrelated disease", "Como tratar diabetes?", false, CategoryGeneral},
		{"nothing matches", "Qual o horário do jogo de futebol?", false, CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.question)
			assert.Equal(t, tt.inScope, d.InScope)
			assert.Equal(t, tt.category, d.Category)
		})
	}
}

func TestNegativeVetoWins(t *testing.T) {
	c := New(DefaultKeywords())

	for _, q := range []string{
		"rifampicina para tuberculose",
		"Posso tomar dapsona se tenho diabetes?",
		"A PQT-U interfere no tratamento de HIV?",
	} {
		d := c.Classify(q)
		assert.False(t, d.InScope, q)
		assert.NotEmpty(t, d.Matched, q)
	}
}

func TestAsthmaVetoSparesPlasma(t *testing.T) {
	c := New(DefaultKeywords())

	for _, q := range []string{
		"nível plasma rifampicina",
		"Qual a concentração plasmática da dapsona?",
	} {
		assert.True(t, c.Classify(q).InScope, q)
	}
	for _, q := range []string{
		"Posso tomar dapsona se tenho asma?",
		"Paciente com asma pode usar clofazimina?",
		"A rifampicina piora a asma?",
	} {
		assert.False(t, c.Classify(q).InScope, q)
	}
}

func TestBucketOrder(t *testing.T) {
	// mentions both dosing and safety terms; dosing is checked first
	c := New(DefaultKeywords())
	d := c.Classify("Qual a dose segura de clofazimina na gravidez?")
	assert.True(t, d.InScope)
	assert.Equal(t, CategoryDosing, d.Category)
}

func TestCustomKeywords(t *testing.T) {
	kw := DefaultKeywords().Merge(Keywords{
		Negative: []string{"Zika"},
		Drugs:    []string{"Bedaquilina"},
	})
	c := New(kw)

	assert.True(t, c.Classify("bedaquilina é usada?").InScope)
	assert.False(t, c.Classify("hanseníase e zika").InScope)
	// tuberculose no longer vetoes once the negative set is replaced
	assert.True(t, c.Classify("dose de rifampicina para tuberculose").InScope)
}

func TestEmptyKeywords(t *testing.T) {
	c := New(Keywords{})
	d := c.Classify("Qual a dose de rifampicina?")
	assert.False(t, d.InScope)
	assert.Equal(t, CategoryGeneral, d.Category)
}
