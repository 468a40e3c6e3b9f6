package scope

// Keywords holds the substring sets used by the Classifier.
// All matching is done against the lower-cased question.
type Keywords struct {
	Positive    []string `yaml:"positive"`
	Negative    []string `yaml:"negative"`
	Drugs       []string `yaml:"drugs"`
	Dosing      []string `yaml:"dosing"`
	Safety      []string `yaml:"safety"`
	Interaction []string `yaml:"interaction"`
	Procedure   []string `yaml:"procedure"`
}

// DefaultKeywords returns the built-in PQT-U keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Positive: []string{
			"hanseníase", "hanseniase", "hansen", "lepra",
			"pqt", "poliquimioterapia", "multibacilar", "paucibacilar",
			"dispensação", "dispensacao", "dispensar", "farmacêutic", "farmaceutic",
			"medicamento", "remédio", "remedio", "comprimido", "cápsula", "capsula",
			"blister", "cartela", "dose", "tratamento", "reação hansênica", "reacao hansenica",
			"mycobacterium leprae", "m. leprae",
		},
		Negative: []string{
			"tuberculose", "diabetes", "hipertensão", "hipertensao", "pressão alta", "pressao alta",
			"covid", "câncer", "cancer", "hiv", "aids", "malária", "malaria", "dengue",
			"gripe", "colesterol", "obesidade", "sífilis", "sifilis",
			// bare "asma" would also match "plasma" and "plasmática"
			"a asma", "de asma", "com asma", "tenho asma",
		},
		Drugs: []string{
			"rifampicina", "clofazimina", "dapsona",
			"ofloxacina", "minociclina", "claritromicina",
			"talidomida", "prednisona",
		},
		Dosing: []string{
			"dose", "dosagem", "posologia", "mg", "quantos comprimidos", "quantidade",
			"administrar", "administração", "administracao", "mensal", "diária", "diaria",
			"supervisionada", "autoadministrada", "peso", "criança", "crianca", "infantil", "adulto",
		},
		Safety: []string{
			"efeito adverso", "efeitos adversos", "efeito colateral", "efeitos colaterais", "colateral",
			"reação", "reacao", "toxicidade", "contraindicação", "contraindicacao",
			"gravidez", "gestante", "grávida", "gravida", "amamentação", "amamentacao",
			"segurança", "seguranca", "alergia", "risco", "urina vermelha", "pele escura",
		},
		Interaction: []string{
			"interação", "interacao", "interage", "junto com", "associar", "combinar",
			"anticoncepcional", "álcool", "alcool", "outros medicamentos", "outro medicamento",
		},
		Procedure: []string{
			"procedimento", "protocolo", "armazenar", "armazenamento", "orientação", "orientacao",
			"registro", "prescrição", "prescricao", "receita", "notificação", "notificacao",
			"como dispensar", "dispensação", "dispensacao", "farmácia", "farmacia",
		},
	}
}

// Merge returns k with every non-empty set in override replacing the corresponding set.
func (k Keywords) Merge(override Keywords) Keywords {
	pick := func(base, o []string) []string {
		if len(o) > 0 {
			return o
		}
		return base
	}
	return Keywords{
		Positive:    pick(k.Positive, override.Positive),
		Negative:    pick(k.Negative, override.Negative),
		Drugs:       pick(k.Drugs, override.Drugs),
		Dosing:      pick(k.Dosing, override.Dosing),
		Safety:      pick(k.Safety, override.Safety),
		Interaction: pick(k.Interaction, override.Interaction),
		Procedure:   pick(k.Procedure, override.Procedure),
	}
}
