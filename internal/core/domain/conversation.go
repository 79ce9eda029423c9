package domain

import "time"

// Stage classifies how far along a conversation is.
type Stage string

const (
	StageOpening    Stage = "opening"
	StageDeveloping Stage = "developing"
	StageClarifying Stage = "clarifying"
	StageConcluding Stage = "concluding"
)

// MaxKeyEntities bounds the key-entity set carried in ConversationState.
const MaxKeyEntities = 10

// ConversationState is the per-chat running memory. One instance per chat,
// mutated on every turn and persisted by the state store. The importance map
// only grows; entries are never removed for the lifetime of the state.
type ConversationState struct {
	ChatID           string             `json:"chat_id"`
	UserID           string             `json:"user_id"`
	TopicSummary     string             `json:"topic_summary"`
	KeyEntities      []string           `json:"key_entities"`
	Stage            Stage              `json:"conversation_stage"`
	LastUpdated      time.Time          `json:"last_updated"`
	ImportanceScores map[string]float64 `json:"importance_scores"`
}

// NewConversationState returns the initial state for a chat's first turn.
func NewConversationState(chatID, userID string, now time.Time) *ConversationState {
	return &ConversationState{
		ChatID:           chatID,
		UserID:           userID,
		KeyEntities:      []string{},
		Stage:            StageOpening,
		LastUpdated:      now,
		ImportanceScores: map[string]float64{},
	}
}
