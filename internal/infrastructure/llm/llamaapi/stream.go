package llamaapi

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// sseStream decodes a text/event-stream completion body into text fragments.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

type streamEvent struct {
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

// Recv returns the next non-empty fragment and io.EOF once the provider
// signals completion. Malformed or empty events are skipped, not surfaced.
func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}
		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		if event.Delta.Text == "" {
			continue
		}
		return event.Delta.Text, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	s.done = true
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
