// Package tools implements the built-in tool registry. Tool results are
// always text: failures are reported inline as "[Error: ...]" fragments so
// they flow through the chat stream like any other output.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const unknownToolResult = "[Unknown tool]"

// Tool is one named capability a chat turn can dispatch to.
type Tool interface {
	Run(ctx context.Context, input string) string
}

// Registry routes tool invocations by name.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(name string, tool Tool) {
	r.tools[name] = tool
}

// Invoke runs the named tool. Unknown names produce a sentinel result, not
// an error.
func (r *Registry) Invoke(ctx context.Context, tool, input string) string {
	impl, ok := r.tools[tool]
	if !ok {
		return unknownToolResult
	}
	return impl.Run(ctx, input)
}

// SearchTool queries the DuckDuckGo instant-answer API and returns up to
// maxResults snippet lines.
type SearchTool struct {
	baseURL    string
	httpClient *http.Client
	maxResults int
}

func NewSearchTool() *SearchTool {
	return &SearchTool{
		baseURL:    "https://api.duckduckgo.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxResults: 5,
	}
}

// NewSearchToolWithBaseURL exists for tests pointing at a stub server.
func NewSearchToolWithBaseURL(baseURL string) *SearchTool {
	tool := NewSearchTool()
	tool.baseURL = strings.TrimRight(baseURL, "/")
	return tool
}

type instantAnswer struct {
	AbstractText  string `json:"AbstractText"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

func (t *SearchTool) Run(ctx context.Context, input string) string {
	query := strings.TrimSpace(input)
	if query == "" {
		return "[Error: search query is empty]"
	}

	endpoint := t.baseURL + "/?q=" + url.QueryEscape(query) + "&format=json&no_html=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("[Error: search returned status %d]", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}

	var lines []string
	if answer.AbstractText != "" {
		lines = append(lines, answer.AbstractText)
	}
	for _, topic := range answer.RelatedTopics {
		if len(lines) >= t.maxResults {
			break
		}
		if topic.Text != "" {
			lines = append(lines, topic.Text)
		}
	}
	if len(lines) == 0 {
		return "No results found."
	}
	return strings.Join(lines, "\n")
}

// SaveFileTool writes "filename|content" inputs as files under its base
// directory. Paths escaping the base directory are rejected.
type SaveFileTool struct {
	baseDir string
}

func NewSaveFileTool(baseDir string) *SaveFileTool {
	return &SaveFileTool{baseDir: baseDir}
}

func (t *SaveFileTool) Run(ctx context.Context, input string) string {
	filename, content, found := strings.Cut(input, "|")
	if !found {
		return "[Error: expected input as filename|content]"
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "[Error: filename is empty]"
	}

	target := filepath.Join(t.baseDir, filepath.Clean(filename))
	rel, err := filepath.Rel(t.baseDir, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Sprintf("[Error: invalid filename %q]", filename)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	return fmt.Sprintf("File '%s' saved.", filename)
}

// NewDefaultRegistry wires the built-in tools with saved files landing in
// saveDir.
func NewDefaultRegistry(saveDir string) *Registry {
	registry := NewRegistry()
	registry.Register("ddgs", NewSearchTool())
	registry.Register("save_file", NewSaveFileTool(saveDir))
	return registry
}
