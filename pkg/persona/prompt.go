package persona

import (
	"fmt"
	"strings"

	"github.com/roteiro-ai/roteiro/pkg/scope"
)

// SystemInstruction is sent as the system turn of every LLM request.
const SystemInstruction = "Você é um assistente educacional sobre a dispensação da PQT-U para " +
	"hanseníase. Siga exatamente o formato pedido na mensagem do usuário e responda em português."

var categoryHints = map[scope.Category]string{
	scope.CategoryDosing:      "doses, posologia e esquema de administração (supervisionada e autoadministrada)",
	scope.CategorySafety:      "segurança, efeitos adversos, contraindicações e populações especiais",
	scope.CategoryInteraction: "interações medicamentosas e uso concomitante com outras substâncias",
	scope.CategoryProcedure:   "procedimentos de dispensação, armazenamento, registro e orientação",
	scope.CategoryGeneral:     "informações gerais sobre a hanseníase e o tratamento com PQT-U",
}

// Build returns the full instruction text for question. Out-of-scope decisions
// produce the limitation prompt; in-scope ones the persona's domain prompt.
func Build(p Persona, question string, d scope.Decision) string {
	if !d.InScope {
		return limitationPrompt(p, question)
	}
	return domainPrompt(p, question, d.Category)
}

func limitationPrompt(p Persona, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Você é %s.\n", p.DisplayName)
	fmt.Fprintf(&b, "Sua área de atuação é exclusivamente: %s.\n\n", p.Expertise)
	b.WriteString("A pergunta abaixo está FORA da sua área de atuação. Responda seguindo estas regras:\n")
	b.WriteString("1. Recuse educadamente e explique que não pode responder a esse assunto.\n")
	fmt.Fprintf(&b, "2. Informe em uma frase que sua especialidade é %s.\n", p.Expertise)
	b.WriteString("3. Recomende recursos alternativos adequados (médico, unidade básica de saúde, " +
		"farmacêutico, Disque Saúde 136).\n")
	b.WriteString("4. Não forneça doses, diagnósticos ou orientações sobre o assunto perguntado.\n")
	b.WriteString("5. Mantenha a resposta curta, no máximo um parágrafo.\n\n")
	fmt.Fprintf(&b, "PERGUNTA: %s", question)
	return b.String()
}

func domainPrompt(p Persona, question string, c scope.Category) string {
	hint, ok := categoryHints[c]
	if !ok {
		hint = categoryHints[scope.CategoryGeneral]
	}

	var b strings.Builder
	b.WriteString(p.Voice)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "CATEGORIA DA PERGUNTA: %s (%s)\n\n", c, hint)

	b.WriteString("FORMATO OBRIGATÓRIO: organize a resposta exatamente nas seções abaixo, nesta ordem, " +
		"usando os rótulos indicados:\n")
	for _, s := range p.Sections {
		fmt.Fprintf(&b, "%s\n", s)
	}

	if len(p.Glossary) > 0 {
		b.WriteString("\nGLOSSÁRIO OBRIGATÓRIO: substitua sempre o termo técnico pela forma simples:\n")
		for _, t := range p.Glossary {
			fmt.Fprintf(&b, "- %s -> %s\n", t.Technical, t.Lay)
		}
	}

	b.WriteString("\nSe a informação não constar do protocolo, diga que não sabe e oriente a procurar " +
		"um profissional de saúde.\n\n")
	fmt.Fprintf(&b, "PERGUNTA: %s", question)
	return b.String()
}
