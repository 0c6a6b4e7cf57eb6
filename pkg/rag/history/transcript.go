package history

import (
	"strings"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/entity"
	"clinical-intake-be/pkg/llm"
)

// ToMessages maps stored turns, oldest first, onto model messages.
func ToMessages(turns []*entity.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		role := llm.RoleUser
		if turn.Role == constant.TurnRoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}

// Transcript renders turns as "role: content" lines for summarization.
func Transcript(turns []*entity.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, turn.Role+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

// AnyAssistantContains reports whether an assistant turn contains marker.
func AnyAssistantContains(turns []*entity.Turn, marker string) bool {
	for _, turn := range turns {
		if turn.Role == constant.TurnRoleAssistant && strings.Contains(turn.Content, marker) {
			return true
		}
	}
	return false
}
