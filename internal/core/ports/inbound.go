package ports

import (
	"context"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

// ChatStreamer is the inbound contract for one user turn. Each produced text
// fragment is handed to emit as it becomes available; a non-nil error from
// emit means the caller is gone and consumption must stop.
type ChatStreamer interface {
	Stream(ctx context.Context, req domain.ChatRequest, emit func(fragment string) error) error
}
