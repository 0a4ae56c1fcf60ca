package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ferre795/chatrelay/pkg/provider"
	"github.com/ferre795/chatrelay/pkg/sse"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chunkPayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// handleNewSession mints a session id and its conversation context.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := s.conversations.Create()
	s.metrics.SessionsTotal.Inc()
	s.metrics.SessionsActive.Set(float64(s.conversations.Len()))
	s.metrics.HTTPRequestsTotal.WithLabelValues("/api/new-session", "200").Inc()

	s.logger.Info().
		Str("requestId", requestID(r.Context())).
		Str("sessionId", id).
		Msg("Session created")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"sessionId": id})
}

// handleChat relays one turn: it replays the conversation context to
// the provider and forwards each increment to the client as an SSE data
// frame. Request failures are plain HTTP errors; provider failures
// after streaming starts become in-band error events.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqID := requestID(r.Context())
	startTime := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "400").Inc()
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.SessionID == "" || req.Message == "" {
		s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "400").Inc()
		http.Error(w, "sessionId and message are required", http.StatusBadRequest)
		return
	}

	history, ok := s.conversations.History(req.SessionID)
	if !ok {
		s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "404").Inc()
		s.logger.Warn().
			Str("requestId", reqID).
			Str("sessionId", req.SessionID).
			Msg("Chat turn for unknown session")
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	// The idle clock resets on every attempt, so a session whose turns
	// keep failing is not pruned mid-conversation
	s.conversations.Touch(req.SessionID)

	if _, ok := w.(http.Flusher); !ok {
		s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "500").Inc()
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.logger.Info().
		Str("requestId", reqID).
		Str("sessionId", req.SessionID).
		Int("historyLen", len(history)).
		Msg("Chat turn started")

	preq := provider.Request{
		Model:     s.options.Model,
		MaxTokens: s.options.MaxTokens,
		Messages: append(history, provider.Message{
			Role: provider.RoleUser,
			Text: req.Message,
		}),
	}

	// The response stays uncommitted until the first increment, so a
	// provider failure before any output can still be a plain 500
	var out *sse.Writer
	var reply strings.Builder
	streamErr := s.provider.Stream(r.Context(), preq, func(delta string) {
		if delta == "" {
			return
		}
		if out == nil {
			out, _ = sse.NewWriter(w)
		}
		reply.WriteString(delta)
		s.metrics.StreamChunksTotal.Inc()

		data, err := json.Marshal(chunkPayload{Text: delta})
		if err != nil {
			return
		}
		if err := out.WriteData(data); err != nil {
			s.logger.Debug().
				Err(err).
				Str("requestId", reqID).
				Msg("Client went away mid-stream")
		}
	})

	if streamErr != nil {
		s.metrics.ChatTurnsTotal.WithLabelValues("error").Inc()
		s.metrics.StreamErrorsTotal.WithLabelValues("provider").Inc()
		s.logger.Error().
			Err(streamErr).
			Str("requestId", reqID).
			Str("sessionId", req.SessionID).
			Msg("Provider stream failed")

		if out == nil {
			s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "500").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errorPayload{Error: "Failed to communicate with the AI model."})
			return
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "200").Inc()
		data, _ := json.Marshal(errorPayload{Error: streamErr.Error()})
		out.WriteEvent("error", data)
		return
	}

	if out == nil {
		out, _ = sse.NewWriter(w)
	}
	s.metrics.HTTPRequestsTotal.WithLabelValues("/api/chat", "200").Inc()

	// The turn only enters the replayed context once it fully succeeds
	s.conversations.AppendTurn(req.SessionID, req.Message, reply.String())
	out.WriteEvent("done", nil)

	s.metrics.ChatTurnsTotal.WithLabelValues("success").Inc()
	s.metrics.ChatTurnDuration.Observe(time.Since(startTime).Seconds())

	s.logger.Info().
		Str("requestId", reqID).
		Str("sessionId", req.SessionID).
		Int("chars", reply.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Chat turn completed")
}

// handleHealth reports liveness and basic counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"sessions":  s.conversations.Len(),
		"provider":  s.provider.Name(),
		"timestamp": time.Now().UnixMilli(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
