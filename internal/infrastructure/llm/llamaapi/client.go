// Package llamaapi implements the completion-provider boundary against the
// Llama API's streaming chat completions endpoint.
package llamaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yavru421/llama-tail/internal/core/domain"
	"github.com/yavru421/llama-tail/internal/core/ports"
	"github.com/yavru421/llama-tail/internal/infrastructure/resilience"
)

const defaultModel = "Llama-4-Maverick-17B-128E-Instruct-FP8"

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

// WithExecutor guards stream opening with retry and a circuit breaker. An
// already-open stream is never restarted; only the connect is resilient.
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   defaultModel,
		// No response timeout here: streams stay open for the duration of
		// the completion. The transport's own timeouts are the only bound.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type completionRequest struct {
	Model               string       `json:"model"`
	Messages            []apiMessage `json:"messages"`
	Temperature         float64        `json:"temperature"`
	MaxCompletionTokens int            `json:"max_completion_tokens"`
	RepetitionPenalty   float64        `json:"repetition_penalty"`
	TopK                int            `json:"top_k"`
	TopP                float64        `json:"top_p"`
	User                string         `json:"user,omitempty"`
	Stream              bool           `json:"stream"`
}

// apiMessage mirrors the provider's message schema: plain string content
// for text, a part list when an image rides along.
type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// StreamCompletion opens a streamed completion. The returned stream is lazy,
// finite, and not restartable.
func (c *Client) StreamCompletion(ctx context.Context, messages []domain.PromptMessage, cfg domain.SamplingConfig) (ports.CompletionStream, error) {
	payload := completionRequest{
		Model:               c.model,
		Messages:            encodeMessages(messages),
		Temperature:         cfg.Temperature,
		MaxCompletionTokens: cfg.MaxCompletionTokens,
		RepetitionPenalty:   cfg.RepetitionPenalty,
		TopK:                cfg.TopK,
		TopP:                cfg.TopP,
		User:                cfg.User,
		Stream:              true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	var resp *http.Response
	open := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create completion request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrProviderUnavailable, "completion request", err)
		}
		if res.StatusCode >= 300 {
			defer res.Body.Close()
			return newHTTPStatusError("completion", res)
		}
		resp = res
		return nil
	}

	if c.executor != nil {
		err = c.executor.Execute(ctx, "llamaapi.stream", open, classifyProviderError)
	} else {
		err = open(ctx)
	}
	if err != nil {
		return nil, err
	}
	return newSSEStream(resp.Body), nil
}

func encodeMessages(messages []domain.PromptMessage) []apiMessage {
	encoded := make([]apiMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.ImageBase64 == "" {
			encoded = append(encoded, apiMessage{Role: msg.Role, Content: msg.Content})
			continue
		}
		encoded = append(encoded, apiMessage{
			Role: msg.Role,
			Content: []contentPart{
				{Type: "text", Text: msg.Content},
				{Type: "image_url", ImageURL: &imageURL{URL: "data:image/png;base64," + msg.ImageBase64}},
			},
		})
	}
	return encoded
}

// HTTPStatusError is a non-success response from the provider.
type HTTPStatusError struct {
	Operation string
	Code      int
	Status    string
	Body      string
}

func newHTTPStatusError(operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation: operation,
		Code:      resp.StatusCode,
		Status:    resp.Status,
		Body:      strings.TrimSpace(string(body)),
	}
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "llama api status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("llama api %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("llama api %s status: %s: %s", e.Operation, e.Status, e.Body)
}

// StatusCode exposes the numeric status for user-facing error fragments.
func (e *HTTPStatusError) StatusCode() int { return e.Code }
