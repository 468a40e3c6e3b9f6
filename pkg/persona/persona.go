// Package persona holds the two fixed answer voices and turns a classified
// question into the instruction text sent to the LLM.
package persona

import "github.com/roteiro-ai/roteiro/pkg/models"

// ID identifies a persona.
type ID string

const (
	Technical  ID = "technical"
	Empathetic ID = "empathetic"
)

// Default is returned for unknown or empty persona ids.
const Default = Technical

// ParseID reports whether s names a registered persona id.
func ParseID(s string) (ID, bool) {
	switch ID(s) {
	case Technical, Empathetic:
		return ID(s), true
	}
	return Default, false
}

// Term is a mandatory technical-to-lay substitution.
type Term struct {
	Technical string
	Lay       string
}

// Persona is an immutable answer voice.
type Persona struct {
	ID          ID
	DisplayName string
	Description string
	// Expertise is the declared domain used in the limitation prompt.
	Expertise string
	// Voice is the identity preamble of the domain prompt.
	Voice     string
	Sections  []string
	Glossary  []Term
	Fallbacks []string
}

// Info returns the presentation metadata owned by the UI.
func (p Persona) Info() models.PersonaInfo {
	return models.PersonaInfo{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		Description: p.Description,
	}
}

// Registry holds the personas available to the gateway.
type Registry struct {
	byID  map[ID]Persona
	order []ID
}

// NewRegistry creates a Registry. A later persona with the same id replaces an earlier one.
func NewRegistry(personas ...Persona) *Registry {
	r := &Registry{byID: make(map[ID]Persona, len(personas))}
	for _, p := range personas {
		if _, dup := r.byID[p.ID]; !dup {
			r.order = append(r.order, p.ID)
		}
		r.byID[p.ID] = p
	}
	return r
}

// DefaultRegistry returns the technical and empathetic personas.
func DefaultRegistry() *Registry {
	return NewRegistry(technicalPersona(), empatheticPersona())
}

// Get returns the persona for id. Unknown ids resolve to the Default persona,
// or to the first registered one when Default is absent.
func (r *Registry) Get(id string) Persona {
	if p, ok := r.byID[ID(id)]; ok {
		return p
	}
	if p, ok := r.byID[Default]; ok {
		return p
	}
	if len(r.order) > 0 {
		return r.byID[r.order[0]]
	}
	return technicalPersona()
}

// List returns personas in registration order.
func (r *Registry) List() []Persona {
	out := make([]Persona, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func technicalPersona() Persona {
	return Persona{
		ID:          Technical,
		DisplayName: "Dr. Gasnelio",
		Description: "Farmacêutico clínico especialista em hanseníase e na dispensação da PQT-U.",
		Expertise:   "dispensação farmacêutica da poliquimioterapia única (PQT-U) para hanseníase",
		Voice: "Você é o Dr. Gasnelio, farmacêutico clínico com experiência em hanseníase. " +
			"Responda com precisão técnica, linguagem profissional e referências ao protocolo " +
			"do Ministério da Saúde (PCDT Hanseníase 2022). Cite doses, intervalos e critérios " +
			"com exatidão e não invente dados ausentes do protocolo.",
		Sections: []string{
			"[RESPOSTA TÉCNICA]",
			"[PROTOCOLO/REFERÊNCIA]",
			"[VALIDAÇÃO FARMACOLÓGICA]",
			"[CONSIDERAÇÕES CLÍNICAS]",
		},
		Fallbacks: []string{
			"No momento não consigo acessar a base de conhecimento completa. Para questões de " +
				"dispensação da PQT-U, consulte o PCDT Hanseníase 2022 do Ministério da Saúde ou " +
				"o farmacêutico responsável da sua unidade. [modo offline]",
			"O serviço de consulta está temporariamente indisponível. Doses e esquemas da PQT-U " +
				"devem ser conferidos no protocolo oficial antes da dispensação. Tente novamente " +
				"em alguns minutos. [modo offline]",
			"Não foi possível gerar uma resposta técnica agora. Recomendo verificar a bula e o " +
				"PCDT vigente e, em caso de dúvida clínica, contatar o médico prescritor. [modo offline]",
		},
	}
}

func empatheticPersona() Persona {
	return Persona{
		ID:          Empathetic,
		DisplayName: "Gá",
		Description: "Assistente acolhedor que explica o tratamento da hanseníase em linguagem simples.",
		Expertise:   "orientação sobre o tratamento da hanseníase com a PQT-U em linguagem simples",
		Voice: "Você é o Gá, um assistente acolhedor que conversa com pacientes e familiares " +
			"sobre o tratamento da hanseníase. Use frases curtas, linguagem do dia a dia e um " +
			"tom caloroso. Nunca use termos técnicos sem trocá-los pela forma simples do glossário.",
		Sections: []string{
			"[ACOLHIMENTO]",
			"[EXPLICAÇÃO SIMPLES]",
			"[APOIO PRÁTICO]",
			"[ENCORAJAMENTO]",
		},
		Glossary: []Term{
			{"poliquimioterapia", "combinação de remédios"},
			{"PQT-U", "kit de remédios do tratamento"},
			{"dispensação", "entrega dos remédios na farmácia"},
			{"dose supervisionada", "dose tomada na frente do profissional de saúde"},
			{"dose autoadministrada", "dose que você toma em casa"},
			{"efeito adverso", "reação do corpo ao remédio"},
			{"hiperpigmentação", "escurecimento da pele"},
			{"posologia", "como e quando tomar"},
			{"contraindicação", "situação em que o remédio não deve ser usado"},
			{"adesão ao tratamento", "tomar os remédios direitinho até o fim"},
		},
		Fallbacks: []string{
			"Oi! Estou com dificuldade para responder agora, mas você não está sozinho. " +
				"Procure a equipe da sua unidade de saúde, eles vão te ajudar. [modo offline]",
			"Desculpe, não consegui me conectar neste momento. Continue tomando seus remédios " +
				"como combinado e fale com o farmacêutico se tiver qualquer dúvida. [modo offline]",
			"Puxa, tive um probleminha para responder agora. Tente de novo daqui a pouco e, " +
				"se for urgente, procure sua unidade de saúde. Você está indo muito bem! [modo offline]",
		},
	}
}
