package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/windward-labs/tripsmith/pkg/usecase/chat"
	"github.com/windward-labs/tripsmith/pkg/utils/logging"
)

// Server exposes the chat core over HTTP: a server-sent-events endpoint for
// streaming turns, history inspection, and per-user reset.
type Server struct {
	registry *chat.ContextRegistry
	metrics  *Metrics
}

func New(registry *chat.ContextRegistry, metrics *Metrics) *Server {
	return &Server{
		registry: registry,
		metrics:  metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		MetricsHandler().ServeHTTP(w, req)
	})

	r.Get("/v1/chat/stream", s.handleChatStream)
	r.Get("/v1/history/{userID}", s.handleHistory)
	r.Post("/v1/reset/{userID}", s.handleReset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleChatStream runs one turn and relays its updates as server-sent
// events: "reply" carries the cumulative text, "ui_event" a structured event,
// "error" a terminal failure, and "done" closes the turn.
func (s *Server) handleChatStream(w http.ResponseWriter, req *http.Request) {
	userID := req.URL.Query().Get("user_id")
	message := req.URL.Query().Get("message")
	if userID == "" || message == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id and message are required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	uc, err := s.registry.Get(req.Context(), userID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.metrics.Turns.Inc()
	startedAt := time.Now()

	updates, errCh := uc.Orchestrator.StreamTurn(req.Context(), userID, message)
	for u := range updates {
		if u.Event != nil {
			s.metrics.TurnEvents.WithLabelValues(string(u.Event.Type)).Inc()
			writeSSE(w, "ui_event", u.Event)
		} else {
			writeSSE(w, "reply", map[string]string{"reply": u.Reply})
		}
		flusher.Flush()
	}

	if err := <-errCh; err != nil {
		s.metrics.TurnErrors.Inc()
		logging.From(req.Context()).Error("turn failed", "user_id", userID, "error", err)
		writeSSE(w, "error", map[string]string{"message": chat.ErrorReply(err)})
		flusher.Flush()
		return
	}

	s.metrics.ObserveTurn(time.Since(startedAt))
	writeSSE(w, "done", map[string]string{})
	flusher.Flush()
}

func (s *Server) handleHistory(w http.ResponseWriter, req *http.Request) {
	userID := chi.URLParam(req, "userID")

	uc, err := s.registry.Get(req.Context(), userID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	msgs, err := uc.History.List(req.Context(), userID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"messages": chat.Sanitize(msgs),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, req *http.Request) {
	userID := chi.URLParam(req, "userID")

	uc, err := s.registry.Get(req.Context(), userID)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	if err := chat.Reset(req.Context(), uc.History, uc.Memories, userID); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	s.registry.Evict(userID)

	respondJSON(w, http.StatusOK, map[string]any{"status": "reset", "user_id": userID})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Default().Warn("failed to encode response", "error", err)
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
