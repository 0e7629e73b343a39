package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"chat-relay/internal/service"
)

// Server exposes the conversation service over HTTP.
type Server struct {
	svc *service.Service
	log *slog.Logger
}

func New(svc *service.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, log: log}
}

func (s *Server) RegisterMux(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/request", s.handleRequest)
	mux.HandleFunc("/api/v1/request/reset", s.handleReset)
	mux.HandleFunc("/api/v1/request/history", s.handleHistory)
}

// RegisterHealth registers the liveness probe, kept separate so it can live
// outside the authenticated handler chain.
func (s *Server) RegisterHealth(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
}

type requestPayload struct {
	Message        string `json:"message"`
	Stream         *bool  `json:"stream"`
	ConversationID string `json:"conversation_id"`
}

type requestResponse struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		writeDetail(w, http.StatusBadRequest, "message is required")
		return
	}
	// Streaming is the default, matching the desktop client.
	if payload.Stream == nil || *payload.Stream {
		s.streamRequest(w, r, payload)
		return
	}

	id, content, err := s.svc.Run(r.Context(), payload.ConversationID, payload.Message)
	if err != nil {
		writeDetail(w, http.StatusBadGateway, fmt.Sprintf("completion failed: %v", err))
		return
	}
	writeJSON(w, requestResponse{Content: content, ConversationID: id})
}

func (s *Server) streamRequest(w http.ResponseWriter, r *http.Request, payload requestPayload) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	st, err := s.svc.StartStream(r.Context(), payload.ConversationID, payload.Message)
	if err != nil {
		writeDetail(w, http.StatusBadGateway, fmt.Sprintf("completion failed: %v", err))
		return
	}
	defer st.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Conversation-Id", st.ConversationID())

	clientGone := r.Context().Done()
deliver:
	for {
		select {
		case <-clientGone:
			// Disconnect stops emission only; the turn still commits.
			break deliver
		case frag, open := <-st.Fragments():
			if !open {
				if streamErr := st.Err(); streamErr != nil {
					writeEvent(w, "error", streamErr.Error())
				}
				break deliver
			}
			writeEvent(w, "content", frag)
			flusher.Flush()
		}
	}
	// The terminal event is sent exactly once on every path so clients never
	// hang waiting for stream end.
	writeEvent(w, "done", "[DONE]")
	flusher.Flush()
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.svc.ResetConversation(payload.ConversationID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("conversation_id")
	messages, ok := s.svc.History(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, map[string]any{
		"conversation_id": strings.TrimSpace(id),
		"messages":        messages,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// writeEvent emits one SSE event. Multi-line data is split into one data
// field per line, per the SSE framing rules.
func writeEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
