package llamaapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yavru421/llama-tail/internal/core/domain"
)

func collectFragments(t *testing.T, client *Client, messages []domain.PromptMessage) []string {
	t.Helper()

	stream, err := client.StreamCompletion(context.Background(), messages, domain.ChatRequest{}.Sampling())
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	defer stream.Close()

	var fragments []string
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		fragments = append(fragments, fragment)
	}
	return fragments
}

func TestStreamCompletionDecodesFragments(t *testing.T) {
	var captured completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"delta\":{\"text\":\"Hello\"}}\n\n")
		io.WriteString(w, ": keep-alive comment\n\n")
		io.WriteString(w, "data: {\"delta\":{\"text\":\" there\"}}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := New(server.URL, "secret")
	fragments := collectFragments(t, client, []domain.PromptMessage{
		{Role: domain.RoleUser, Content: "hi"},
	})

	if len(fragments) != 2 || fragments[0] != "Hello" || fragments[1] != " there" {
		t.Fatalf("unexpected fragments %v", fragments)
	}
	if !captured.Stream {
		t.Error("request did not ask for streaming")
	}
	if captured.Model != defaultModel {
		t.Errorf("unexpected model %q", captured.Model)
	}
	if captured.Temperature != 0.7 || captured.MaxCompletionTokens != 8024 {
		t.Errorf("sampling defaults not applied: %+v", captured)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != domain.RoleUser {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
	if content, ok := captured.Messages[0].Content.(string); !ok || content != "hi" {
		t.Errorf("text content should encode as a plain string, got %#v", captured.Messages[0].Content)
	}
}

func TestStreamCompletionEncodesImageAsParts(t *testing.T) {
	var rawBody map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&rawBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := New(server.URL, "")
	collectFragments(t, client, []domain.PromptMessage{
		{Role: domain.RoleUser, Content: "describe this", ImageBase64: "aGVsbG8="},
	})

	var messages []struct {
		Content []contentPart `json:"content"`
	}
	if err := json.Unmarshal(rawBody["messages"], &messages); err != nil {
		t.Fatalf("image message should encode content as parts: %v", err)
	}
	parts := messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %d", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "describe this" {
		t.Errorf("unexpected text part %+v", parts[0])
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL == nil || parts[1].ImageURL.URL != "data:image/png;base64,aGVsbG8=" {
		t.Errorf("unexpected image part %+v", parts[1])
	}
}

func TestStreamCompletionStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.StreamCompletion(context.Background(), nil, domain.ChatRequest{}.Sampling())
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode() != http.StatusServiceUnavailable {
		t.Errorf("unexpected status code %d", statusErr.StatusCode())
	}
	if statusErr.Body != "model overloaded" {
		t.Errorf("unexpected body %q", statusErr.Body)
	}
}

func TestStreamCompletionConnectFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL, "")
	_, err := client.StreamCompletion(context.Background(), nil, domain.ChatRequest{}.Sampling())
	if err == nil {
		t.Fatal("expected error for unreachable provider")
	}
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Errorf("connect failure should carry the provider-unavailable kind: %v", err)
	}
}

func TestStreamRecvAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"delta\":{\"text\":\"partial\"}}\n\n")
	}))
	defer server.Close()

	client := New(server.URL, "")
	stream, err := client.StreamCompletion(context.Background(), nil, domain.ChatRequest{}.Sampling())
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv after Close should return io.EOF, got %v", err)
	}
}

func TestClassifyProviderError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"rate_limited", &HTTPStatusError{Code: http.StatusTooManyRequests}, true, true},
		{"server_fault", &HTTPStatusError{Code: http.StatusBadGateway}, true, true},
		{"bad_request", &HTTPStatusError{Code: http.StatusBadRequest}, false, false},
		{"unreachable", domain.WrapError(domain.ErrProviderUnavailable, "dial", errors.New("refused")), true, true},
		{"unknown", errors.New("boom"), false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyProviderError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
				t.Errorf("classification %+v, want retryable=%v record=%v", class, tc.retryable, tc.record)
			}
		})
	}
}
