// Package httpadapter exposes the chat relay over HTTP: the streaming /chat
// endpoint plus the chat management and static-file surface around it.
package httpadapter

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/yavru421/llama-tail/internal/core/domain"
	"github.com/yavru421/llama-tail/internal/core/ports"
	"github.com/yavru421/llama-tail/internal/observability/metrics"
)

const maxUploadBytes = 10 << 20

type Router struct {
	streamer  ports.ChatStreamer
	chats     ports.ChatStore
	metrics   *metrics.HTTPServerMetrics
	staticDir string
	traffic   TrafficControl
}

func NewRouter(
	streamer ports.ChatStreamer,
	chats ports.ChatStore,
	httpMetrics *metrics.HTTPServerMetrics,
	staticDir string,
	traffic TrafficControl,
) *Router {
	return &Router{
		streamer:  streamer,
		chats:     chats,
		metrics:   httpMetrics,
		staticDir: staticDir,
		traffic:   traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/chat", rt.chat)
	mux.HandleFunc("/list_chats", rt.listChats)
	mux.HandleFunc("/get_chat", rt.getChat)
	mux.HandleFunc("/create_chat", rt.createChat)
	mux.HandleFunc("/upload_image", rt.uploadImage)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(rt.staticDir))))
	mux.HandleFunc("/", rt.index)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware("api", handler)
	handler = backpressureMiddleware(handler, rt.traffic.MaxConcurrent, rt.traffic.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(rt.staticDir, "index.html"))
}

// chat streams plain-text fragments, flushing each one so the client sees
// tokens as they arrive.
func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, _ := w.(http.Flusher)
	emit := func(fragment string) error {
		if err := r.Context().Err(); err != nil {
			return err
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := rt.streamer.Stream(r.Context(), req, emit); err != nil {
		// Nothing streamed yet for validation failures, so a status code
		// is still deliverable.
		status := mapErrorToHTTPStatus(err)
		slog.Warn("chat_turn_rejected",
			"request_id", requestIDFromContext(r.Context()),
			"status", status,
			"error", err,
		)
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func (rt *Router) listChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	chats, err := rt.chats.List(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if chats == nil {
		chats = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"chats": chats})
}

func (rt *Router) getChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	chatID := strings.TrimSpace(r.URL.Query().Get("chat"))
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'chat' is required"})
		return
	}

	turns, err := rt.chats.Load(r.Context(), chatID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if turns == nil {
		turns = []domain.EnhancedMessage{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.EnhancedMessage{"messages": turns})
}

func (rt *Router) createChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	name := strings.TrimSpace(r.PostFormValue("chat_name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'chat_name' is required"})
		return
	}

	if err := rt.chats.Create(r.Context(), name); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "chat": name})
}

func (rt *Router) uploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read upload"})
		return
	}
	if len(content) > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file exceeds upload limit"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"base64": base64.StdEncoding.EncodeToString(content)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
