package llamaapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/yavru421/llama-tail/internal/core/domain"
	"github.com/yavru421/llama-tail/internal/infrastructure/resilience"
)

// classifyProviderError decides retry and breaker accounting for stream
// opening. Caller cancellation is neither retried nor held against the
// provider; client-side 4xx responses are terminal but only rate limiting
// and server faults trip the breaker.
func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case statusErr.Code >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	if domain.IsKind(err, domain.ErrProviderUnavailable) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
