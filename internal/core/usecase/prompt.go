package usecase

import (
	"fmt"
	"strings"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

// buildPromptMessages assembles the completion request: a system preamble
// describing the conversation memory, the highest-ranked context turns in
// ranked order, then the current user turn.
func buildPromptMessages(state *domain.ConversationState, profile *domain.UserProfile, ranked []domain.EnhancedMessage, userTurn domain.EnhancedMessage) []domain.PromptMessage {
	messages := make([]domain.PromptMessage, 0, promptContextTurns+2)

	if preamble := buildSystemPreamble(state, profile); preamble != "" {
		messages = append(messages, domain.PromptMessage{
			Role:    domain.RoleSystem,
			Content: preamble,
		})
	}

	limit := promptContextTurns
	if len(ranked) < limit {
		limit = len(ranked)
	}
	for _, msg := range ranked[:limit] {
		messages = append(messages, domain.PromptMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	messages = append(messages, domain.PromptMessage{
		Role:        domain.RoleUser,
		Content:     userTurn.Content,
		ImageBase64: userTurn.ImageBase64,
	})
	return messages
}

func buildSystemPreamble(state *domain.ConversationState, profile *domain.UserProfile) string {
	var lines []string
	if state != nil {
		if state.TopicSummary != "" {
			lines = append(lines, "Topic so far: "+state.TopicSummary)
		}
		lines = append(lines, "Conversation stage: "+string(state.Stage))
		if len(state.KeyEntities) > 0 {
			lines = append(lines, "Key entities: "+strings.Join(state.KeyEntities, ", "))
		}
	}
	if profile != nil && len(profile.CommunicationStyle) > 0 {
		lines = append(lines, "User style: "+formatStyleVector(profile.CommunicationStyle))
	}
	if len(lines) == 0 {
		return ""
	}
	return "You are a helpful assistant with memory of this conversation.\n" + strings.Join(lines, "\n")
}

func formatStyleVector(style map[string]float64) string {
	dimensions := []string{
		domain.StyleFormality,
		domain.StyleEnthusiasm,
		domain.StyleTechnicalDepth,
		domain.StyleBrevity,
	}
	parts := make([]string, 0, len(dimensions))
	for _, dimension := range dimensions {
		parts = append(parts, fmt.Sprintf("%s=%.2f", dimension, style[dimension]))
	}
	return strings.Join(parts, ", ")
}
