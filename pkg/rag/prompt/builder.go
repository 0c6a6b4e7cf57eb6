package prompt

import (
	"fmt"
	"strings"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/pkg/llm"
	"clinical-intake-be/pkg/rag/retrieval"
)

// IntakeBuilder assembles the system message for one intake turn
type IntakeBuilder struct {
	systemPrompt string
	context      []retrieval.Item
}

func NewIntakeBuilder(systemPrompt string, context []retrieval.Item) *IntakeBuilder {
	if systemPrompt == "" {
		systemPrompt = constant.IntakeSystemPromptV1
	}
	return &IntakeBuilder{
		systemPrompt: systemPrompt,
		context:      context,
	}
}

// Build returns the instructions, followed by the context block when there is any context.
func (b *IntakeBuilder) Build() string {
	var prompt strings.Builder
	prompt.WriteString(b.systemPrompt)
	b.writeContext(&prompt)
	return prompt.String()
}

// Messages prepends the system message to the session history.
func (b *IntakeBuilder) Messages(history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.Build()})
	return append(messages, history...)
}

func (b *IntakeBuilder) writeContext(prompt *strings.Builder) {
	if len(b.context) == 0 {
		return
	}

	prompt.WriteString("\n\n")
	prompt.WriteString(constant.ContextBlockHeader)
	prompt.WriteString("\n")
	for _, item := range b.context {
		fmt.Fprintf(prompt, "[%s]: %s\n", item.Role, item.Content)
	}
	prompt.WriteString("\n")
	prompt.WriteString(constant.ContextBlockFooter)
}

// SummaryPrompt fills the summarization template with a transcript.
func SummaryPrompt(transcript string) string {
	return fmt.Sprintf(constant.SummaryPromptTemplateV1, transcript)
}
