package agent

import (
	"strings"

	"resume-agent/internal/ai"
	"resume-agent/internal/model"
	"resume-agent/internal/persona"
)

// Assembler builds the prompt for one generation: persona system prompt,
// optional memory snippets, a bounded history tail, and the current query.
type Assembler struct {
	persona    *persona.Persona
	runeBudget int
	maxTurns   int
}

func NewAssembler(p *persona.Persona, runeBudget, maxTurns int) *Assembler {
	if runeBudget <= 0 {
		runeBudget = 24000
	}
	if maxTurns <= 0 {
		maxTurns = 12
	}
	return &Assembler{persona: p, runeBudget: runeBudget, maxTurns: maxTurns}
}

// Build assembles messages under the rune budget. The system prompt and the
// current query are never dropped; history is truncated oldest-first when
// the budget is tight.
func (a *Assembler) Build(sess *model.Session, history []model.ChatTurn, snippets []string, query string) []ai.ChatMessage {
	system := a.persona.SystemPrompt(sess.UserName, sess.Company, sess.JobPosting)
	if len(snippets) > 0 {
		var sb strings.Builder
		sb.WriteString(system)
		sb.WriteString("\n\nRelevant details from earlier in this conversation:\n")
		for _, s := range snippets {
			sb.WriteString("- ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
		system = sb.String()
	}

	if len(history) > a.maxTurns {
		history = history[len(history)-a.maxTurns:]
	}

	budget := a.runeBudget - len([]rune(system)) - len([]rune(query))
	kept := history
	for len(kept) > 0 && historyRunes(kept) > budget {
		kept = kept[1:]
	}

	messages := make([]ai.ChatMessage, 0, len(kept)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: system})
	for _, t := range kept {
		messages = append(messages, ai.ChatMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: model.RoleUser, Content: query})
	return messages
}

func historyRunes(turns []model.ChatTurn) int {
	n := 0
	for _, t := range turns {
		n += len([]rune(t.Content))
	}
	return n
}
