package domain

import "time"

// Message roles used across the chat store and the completion provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// EnhancedMessage is one stored conversation turn. It is immutable once
// produced; state tracking references it by ID only.
type EnhancedMessage struct {
	ID              string         `json:"message_id"`
	Role            string         `json:"role"`
	Content         string         `json:"content"`
	ImageBase64     string         `json:"image_base64,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	ImportanceScore float64        `json:"importance_score"`
	IntentClarity   *IntentClarity `json:"intent_clarity,omitempty"`
	Tool            string         `json:"tool,omitempty"`
}

// SamplingConfig carries the completion request tuning parameters.
type SamplingConfig struct {
	Temperature         float64
	MaxCompletionTokens int
	RepetitionPenalty   float64
	TopK                int
	TopP                float64
	User                string
}

// PromptMessage is one role-tagged entry handed to the completion provider.
// Image payloads are opaque base64 passed through unmodified.
type PromptMessage struct {
	Role        string
	Content     string
	ImageBase64 string
}

// ChatRequest is a single incoming user turn.
type ChatRequest struct {
	Message             string  `json:"message"`
	ImageBase64         string  `json:"image_base64,omitempty"`
	Temperature         float64 `json:"temperature"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
	RepetitionPenalty   float64 `json:"repetition_penalty"`
	TopK                int     `json:"top_k"`
	TopP                float64 `json:"top_p"`
	User                string  `json:"user"`
	Tool                string  `json:"tool,omitempty"`
	ToolInput           string  `json:"tool_input,omitempty"`
	Chat                string  `json:"chat,omitempty"`
}

// Sampling extracts the provider tuning parameters from the request,
// substituting defaults for unset values.
func (r ChatRequest) Sampling() SamplingConfig {
	cfg := SamplingConfig{
		Temperature:         r.Temperature,
		MaxCompletionTokens: r.MaxCompletionTokens,
		RepetitionPenalty:   r.RepetitionPenalty,
		TopK:                r.TopK,
		TopP:                r.TopP,
		User:                r.User,
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxCompletionTokens <= 0 {
		cfg.MaxCompletionTokens = 8024
	}
	if cfg.RepetitionPenalty <= 0 {
		cfg.RepetitionPenalty = 1.0
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 50
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 1.0
	}
	return cfg
}

// TurnEvent is published to the event bus after a completed turn.
type TurnEvent struct {
	ChatID       string    `json:"chat_id"`
	UserID       string    `json:"user_id"`
	MessageID    string    `json:"message_id"`
	Outcome      string    `json:"outcome"`
	Stage        Stage     `json:"stage,omitempty"`
	ClarityScore float64   `json:"clarity_score"`
	Tool         string    `json:"tool,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Turn outcomes recorded in TurnEvent.
const (
	OutcomeCompleted    = "completed"
	OutcomeClarify      = "clarify_short_circuit"
	OutcomeTool         = "tool_dispatched"
	OutcomeProviderFail = "provider_failure"
)
