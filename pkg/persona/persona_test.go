package persona

import (
	"strings"
	"testing"

	"github.com/roteiro-ai/roteiro/pkg/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGet(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, Technical, r.Get("technical").ID)
	assert.Equal(t, Empathetic, r.Get("empathetic").ID)
	assert.Equal(t, Technical, r.Get("").ID)
	assert.Equal(t, Technical, r.Get("pirate").ID)
}

func TestRegistryWithoutDefault(t *testing.T) {
	r := NewRegistry(empatheticPersona())
	assert.Equal(t, Empathetic, r.Get("unknown").ID)

	empty := NewRegistry()
	assert.Equal(t, Technical, empty.Get("x").ID)
}

func TestRegistryList(t *testing.T) {
	list := DefaultRegistry().List()
	require.Len(t, list, 2)
	assert.Equal(t, Technical, list[0].ID)
	assert.Equal(t, Empathetic, list[1].ID)
	assert.Equal(t, "Dr. Gasnelio", list[0].Info().DisplayName)
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("empathetic")
	assert.True(t, ok)
	assert.Equal(t, Empathetic, id)

	id, ok = ParseID("nope")
	assert.False(t, ok)
	assert.Equal(t, Default, id)
}

func TestPersonaPools(t *testing.T) {
	for _, p := range DefaultRegistry().List() {
		assert.Len(t, p.Sections, 4, p.ID)
		assert.NotEmpty(t, p.Fallbacks, p.ID)
		for _, f := range p.Fallbacks {
			assert.NotEmpty(t, strings.TrimSpace(f))
		}
	}
}

func TestBuildTechnicalDomainPrompt(t *testing.T) {
	p := DefaultRegistry().Get("technical")
	q := "Qual a dose de rifampicina para adultos?"
	prompt := Build(p, q, scope.Decision{InScope: true, Category: scope.CategoryDosing})

	for _, label := range []string{
		"[RESPOSTA TÉCNICA]",
		"[PROTOCOLO/REFERÊNCIA]",
		"[VALIDAÇÃO FARMACOLÓGICA]",
		"[CONSIDERAÇÕES CLÍNICAS]",
	} {
		assert.Contains(t, prompt, label)
	}
	assert.Contains(t, prompt, "CATEGORIA DA PERGUNTA: dosing")
	assert.NotContains(t, prompt, "GLOSSÁRIO")
	assert.True(t, strings.HasSuffix(prompt, q), "question must be appended verbatim at the end")
}

func TestBuildEmpatheticDomainPrompt(t *testing.T) {
	p := DefaultRegistry().Get("empathetic")
	q := "Minha urina ficou vermelha, é normal?"
	prompt := Build(p, q, scope.Decision{InScope: true, Category: scope.CategorySafety})

	for _, label := range []string{"[ACOLHIMENTO]", "[EXPLICAÇÃO SIMPLES]", "[APOIO PRÁTICO]", "[ENCORAJAMENTO]"} {
		assert.Contains(t, prompt, label)
	}
	assert.Contains(t, prompt, "GLOSSÁRIO OBRIGATÓRIO")
	assert.Contains(t, prompt, "poliquimioterapia -> combinação de remédios")
	assert.True(t, strings.HasSuffix(prompt, q))
}

func TestBuildLimitationPrompt(t *testing.T) {
	q := "Como tratar diabetes?"
	d := scope.Decision{InScope: false, Category: scope.CategoryGeneral}

	for _, p := range DefaultRegistry().List() {
		prompt := Build(p, q, d)
		assert.Contains(t, prompt, "FORA da sua área de atuação")
		assert.Contains(t, prompt, p.Expertise)
		assert.Contains(t, prompt, "Recomende recursos alternativos")
		for _, s := range p.Sections {
			assert.NotContains(t, prompt, s)
		}
		assert.True(t, strings.HasSuffix(prompt, q))
	}
}

func TestFallback(t *testing.T) {
	p := DefaultRegistry().Get("empathetic")

	assert.Equal(t, p.Fallbacks[1], Fallback(p, func(int) int { return 1 }))
	// out-of-range picks are clamped
	assert.Equal(t, p.Fallbacks[0], Fallback(p, func(int) int { return 99 }))
	assert.Contains(t, p.Fallbacks, Fallback(p, nil))
	assert.Equal(t, genericFallback, Fallback(Persona{}, nil))
}

func TestSeededPickerDeterministic(t *testing.T) {
	a, b := SeededPicker(7), SeededPicker(7)
	for range 10 {
		assert.Equal(t, a(3), b(3))
	}
}
