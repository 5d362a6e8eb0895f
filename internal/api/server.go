// Package api implements the HTTP surface: chat endpoints (plain and
// SSE streaming), conversation management, and a websocket feed of
// agent events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/signal42/campaign-agent/internal/agent"
	"github.com/signal42/campaign-agent/internal/buildinfo"
	"github.com/signal42/campaign-agent/internal/conversation"
	"github.com/signal42/campaign-agent/internal/events"
	"github.com/signal42/campaign-agent/internal/grounding"
)

// writeJSON encodes v to w. Failures usually mean the client went
// away mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address       string
	port          int
	orchestrator  *agent.Orchestrator
	conversations *conversation.Store
	bus           *events.Bus
	logger        *slog.Logger
	server        *http.Server
	upgrader      websocket.Upgrader
}

// NewServer creates an API server. bus may be nil; the /ws feed then
// sends nothing.
func NewServer(address string, port int, orch *agent.Orchestrator, convs *conversation.Store, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:       address,
		port:          port,
		orchestrator:  orch,
		conversations: convs,
		bus:           bus,
		logger:        logger.With("component", "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Same-origin policy is not useful for a local ops tool.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)

	mux.HandleFunc("GET /api/conversations", s.handleConversationList)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleConversationGet)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleConversationDelete)

	mux.HandleFunc("GET /ws", s.handleWebsocket)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. Blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE and websocket connections are long-lived.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": msg}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "campaign-agent",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ChatRequest is the /api/chat input.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResponse is the /api/chat output.
type ChatResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Message        string                 `json:"message"`
	ToolCalls      []agent.ToolCallRecord `json:"tool_calls"`
	Grounding      grounding.Metadata     `json:"grounding"`
	Turns          int                    `json:"turns"`
	InputTokens    int                    `json:"input_tokens"`
	OutputTokens   int                    `json:"output_tokens"`
}

// parseChatRequest validates the request body and fills in a fresh
// conversation id when none was given.
func (s *Server) parseChatRequest(r *http.Request) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Message == "" {
		return nil, errors.New("message is required")
	}
	if req.ConversationID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate conversation id: %w", err)
		}
		req.ConversationID = id.String()
	}
	return &req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseChatRequest(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := s.conversations.History(r.Context(), req.ConversationID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	res, err := s.orchestrator.Respond(r.Context(), history, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, agent.ErrMaxTurnsExceeded) {
			status = http.StatusUnprocessableEntity
		}
		s.logger.Error("chat request failed", "conversation", req.ConversationID, "error", err)
		s.errorResponse(w, status, err.Error())
		return
	}

	if err := s.conversations.Append(r.Context(), req.ConversationID, res.NewMessages); err != nil {
		s.logger.Error("failed to persist conversation", "conversation", req.ConversationID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{
		ConversationID: req.ConversationID,
		Message:        res.Message,
		ToolCalls:      res.ToolCalls,
		Grounding:      res.Grounding,
		Turns:          res.Turns,
		InputTokens:    res.InputTokens,
		OutputTokens:   res.OutputTokens,
	}, s.logger)
}

// sseWriter serializes server-sent events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
}

func (sw *sseWriter) send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		sw.logger.Debug("failed to encode sse event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, payload)
	sw.flusher.Flush()
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseChatRequest(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sw := &sseWriter{w: w, flusher: flusher, logger: s.logger}
	sw.send("start", map[string]string{"conversation_id": req.ConversationID})

	history, err := s.conversations.History(r.Context(), req.ConversationID)
	if err != nil {
		sw.send("error", map[string]string{"error": "failed to load conversation"})
		return
	}

	res, err := s.orchestrator.RespondStream(r.Context(), history, req.Message, func(ev agent.StreamEvent) {
		switch ev.Kind {
		case agent.StreamToken:
			sw.send("text", map[string]string{"delta": ev.Token})
		case agent.StreamToolCall:
			sw.send("tool_call", map[string]any{"name": ev.ToolName, "input": ev.Input})
		case agent.StreamToolResult:
			sw.send("tool_result", map[string]any{"name": ev.ToolName, "result": ev.Result})
		}
	})
	if err != nil {
		s.logger.Error("streaming chat failed", "conversation", req.ConversationID, "error", err)
		sw.send("error", map[string]string{"error": err.Error()})
		return
	}

	if err := s.conversations.Append(r.Context(), req.ConversationID, res.NewMessages); err != nil {
		s.logger.Error("failed to persist conversation", "conversation", req.ConversationID, "error", err)
	}

	sw.send("done", ChatResponse{
		ConversationID: req.ConversationID,
		Message:        res.Message,
		ToolCalls:      res.ToolCalls,
		Grounding:      res.Grounding,
		Turns:          res.Turns,
		InputTokens:    res.InputTokens,
		OutputTokens:   res.OutputTokens,
	})
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.Conversations(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"conversations": convs}, s.logger)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, err := s.conversations.History(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"conversation_id": id, "messages": history}, s.logger)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.conversations.Clear(r.Context(), id); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"conversation_id": id, "status": "cleared"}, s.logger)
}

// handleWebsocket streams bus events to the client as JSON frames.
// Slow clients are disconnected rather than allowed to back up the bus.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.bus == nil {
		return
	}

	ch := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(ch)

	// Reader loop: discard client frames, detect disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
