package ports

import (
	"context"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

// ChatStore persists ordered conversation turns. A missing chat behaves as an
// empty history, never an error.
type ChatStore interface {
	Load(ctx context.Context, chatID string) ([]domain.EnhancedMessage, error)
	Append(ctx context.Context, chatID string, turn domain.EnhancedMessage) error
	Create(ctx context.Context, chatID string) error
	List(ctx context.Context) ([]string, error)
}

// StateStore persists per-chat conversation state. Load returns nil on a
// miss, not an error.
type StateStore interface {
	Load(ctx context.Context, chatID string) (*domain.ConversationState, error)
	Save(ctx context.Context, state *domain.ConversationState) error
}

// ProfileStore persists per-user style profiles. Load returns nil on a miss,
// not an error.
type ProfileStore interface {
	Load(ctx context.Context, userID string) (*domain.UserProfile, error)
	Save(ctx context.Context, profile *domain.UserProfile) error
}

// CompletionStream is a lazy, finite, non-restartable sequence of text
// fragments. Recv returns io.EOF when the stream ends.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionProvider opens a streamed completion for an ordered list of
// role-tagged messages.
type CompletionProvider interface {
	StreamCompletion(ctx context.Context, messages []domain.PromptMessage, cfg domain.SamplingConfig) (CompletionStream, error)
}

// ToolProvider executes a named tool. Unknown tool names yield a sentinel
// text result rather than an error.
type ToolProvider interface {
	Invoke(ctx context.Context, tool, input string) string
}

// TurnEventPublisher emits turn-completed events for observers. Publishing is
// best-effort; failures never fail the turn.
type TurnEventPublisher interface {
	PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error
}
