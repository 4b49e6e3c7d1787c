package ai

import "strings"

const defaultSystemPrompt = `You are the assistant on the Solution Connector website.
Answer visitors' questions about the company's services, solutions, industries and team.
Keep answers short, friendly and factual.
If you do not know the answer, say that you don't know instead of making one up.`

// BuildSystemPrompt returns the system prompt, extended with background
// knowledge when some is configured.
func BuildSystemPrompt(knowledge string) string {
	knowledge = strings.TrimSpace(knowledge)
	if knowledge == "" {
		return defaultSystemPrompt
	}

	var builder strings.Builder
	builder.WriteString(defaultSystemPrompt)
	builder.WriteString("\n\nUse the following context when it is relevant:\n")
	builder.WriteString(knowledge)
	return builder.String()
}
