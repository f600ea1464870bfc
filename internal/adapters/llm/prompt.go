package llm

import (
	"strings"

	"github.com/PabloGalante/farum-chat/internal/domain"
)

const baseSystemPrompt = `
You are "Farum", a helpful assistant in a console chat.

General style guidelines:
- Answer in the SAME LANGUAGE as the user.
- Be concise and concrete. Prefer short paragraphs or bullet points.
- When you are not sure, say so instead of guessing.
- Use the available tools when they give a better answer than memory alone.
`

// BuildSystemPrompt returns the system instruction for a turn, listing the
// tools offered in it.
func BuildSystemPrompt(tools []domain.ToolSpec) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(baseSystemPrompt))

	if len(tools) > 0 {
		b.WriteString("\n\nTools available in this turn:\n")
		for _, t := range tools {
			b.WriteString("- ")
			b.WriteString(t.Name)
			if t.Description != "" {
				b.WriteString(": ")
				b.WriteString(t.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
