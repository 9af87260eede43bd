package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/notify"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	maxBodyBytes             = 4 << 20
)

// SSEOptions tunes the HTTP/SSE surface.
type SSEOptions struct {
	HeartbeatInterval time.Duration
	AllowedOrigins    []string

	// Extra middleware applied to every route, e.g. rate limiting.
	Middleware []func(http.Handler) http.Handler
}

// SSEServer exposes the gateway over HTTP: one long-lived event stream per
// session plus POST endpoints that feed the dispatcher.
type SSEServer struct {
	registry   *session.Registry
	dispatcher Dispatcher
	pump       *notify.Pump
	hub        *WSHub
	logger     logging.Logger
	opts       SSEOptions
}

// NewSSEServer wires the HTTP surface over the shared session registry and
// dispatcher. hub may be nil to disable the WebSocket mirror.
func NewSSEServer(registry *session.Registry, dispatcher Dispatcher, pump *notify.Pump, hub *WSHub, logger logging.Logger, opts SSEOptions) *SSEServer {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	return &SSEServer{
		registry:   registry,
		dispatcher: dispatcher,
		pump:       pump,
		hub:        hub,
		logger:     logger.WithComponent("sse"),
		opts:       opts,
	}
}

// Routes builds the HTTP handler tree.
func (s *SSEServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.logger))
	r.Use(CORS(s.opts.AllowedOrigins...))
	for _, mw := range s.opts.Middleware {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/stream", s.handleStream)
	r.Get("/stream/{sessionID}", s.handleStream)
	r.Post("/request/{sessionID}", s.handleRequest)
	r.Post("/batch/{sessionID}", s.handleBatch)
	r.Get("/sessions", s.handleListSessions)
	r.Delete("/sessions/{sessionID}", s.handleCloseSession)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleUpgrade)
	}
	return r
}

// handleStream opens the SSE event stream for a session. Connecting under an
// existing session id resets that session: the previous stream's queue is
// closed and a fresh one takes its place.
func (s *SSEServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	s.registry.Create(sessionID)
	queue, ok := s.registry.Queue(sessionID)
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.pump.Publish(sessionID, notify.MethodSessionConnected, map[string]any{
		"session_id":       sessionID,
		"protocol_version": protocol.Version,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
	s.logger.InfoContext(r.Context(), "stream opened", "session_id", sessionID)

	ctx := r.Context()
	for {
		msg, result := queue.Next(ctx, s.opts.HeartbeatInterval)
		switch result {
		case session.NextItem:
			if err := writeEvent(w, flusher, msg); err != nil {
				s.teardown(ctx, sessionID, queue, "write failed")
				return
			}
		case session.NextTimeout:
			heartbeat := protocol.NewNotification(notify.MethodSessionHeartbeat, map[string]any{
				"session_id": sessionID,
				"timestamp":  time.Now().UTC().Format(time.RFC3339),
			})
			if err := writeEvent(w, flusher, heartbeat); err != nil {
				s.teardown(ctx, sessionID, queue, "heartbeat write failed")
				return
			}
		case session.NextClosed:
			// Client went away or the session was reset/closed elsewhere.
			s.teardown(ctx, sessionID, queue, "stream closed")
			return
		}
	}
}

// teardown closes the session, but only while it still owns the queue this
// stream was draining. A reconnect replaces the queue, and the superseded
// stream must not tear down its successor.
func (s *SSEServer) teardown(ctx context.Context, sessionID string, queue *session.Queue, reason string) {
	if current, ok := s.registry.Queue(sessionID); ok && current != queue {
		s.logger.InfoContext(ctx, "stream superseded", "session_id", sessionID)
		return
	}
	if s.registry.Close(sessionID) {
		// The queue is already gone; this reaches the WebSocket mirror only.
		s.pump.Publish(sessionID, notify.MethodSessionDisconnected, map[string]any{
			"session_id": sessionID,
		})
	}
	s.logger.InfoContext(ctx, "stream ended", "session_id", sessionID, "reason", reason)
}

// handleRequest accepts one JSON-RPC request for an existing session. The
// response is returned in the HTTP body and, when the request carries an id,
// mirrored onto the session's event stream.
func (s *SSEServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, ok := s.registry.Get(sessionID); !ok {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.SessionNotFound, "Session not found", map[string]any{"session_id": sessionID})))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.ParseError, "Parse error", err.Error())))
		return
	}

	req, derr := protocol.DecodeRequest(body)
	if derr != nil {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil, toRPCError(derr)))
		return
	}

	s.registry.Touch(sessionID)
	resp := s.dispatcher.Dispatch(r.Context(), sessionID, req)
	if req.HasID() {
		s.registry.Push(sessionID, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBatch accepts an ordered JSON-RPC batch. Each entry is decoded and
// dispatched independently; one malformed entry yields an error response in
// its slot without aborting the rest.
func (s *SSEServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, ok := s.registry.Get(sessionID); !ok {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.SessionNotFound, "Session not found", map[string]any{"session_id": sessionID})))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.ParseError, "Parse error", err.Error())))
		return
	}

	items, berr := protocol.SplitBatch(body)
	if berr != nil {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil, toRPCError(berr)))
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusOK, protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.InvalidRequest, "Invalid Request", "empty batch")))
		return
	}

	s.registry.Touch(sessionID)

	responses := make([]*protocol.Response, 0, len(items))
	for _, item := range items {
		req, derr := protocol.DecodeRequest(item)
		if derr != nil {
			responses = append(responses, protocol.NewErrorResponse(nil, toRPCError(derr)))
			continue
		}
		resp := s.dispatcher.Dispatch(r.Context(), sessionID, req)
		if req.HasID() {
			s.registry.Push(sessionID, resp)
		}
		responses = append(responses, resp)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *SSEServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *SSEServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.registry.Close(sessionID) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":      "session not found",
			"session_id": sessionID,
		})
		return
	}

	s.pump.Publish(sessionID, notify.MethodSessionDisconnected, map[string]any{
		"session_id": sessionID,
	})
	s.logger.InfoContext(r.Context(), "session closed", "session_id", sessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "closed",
		"session_id": sessionID,
	})
}

func (s *SSEServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": s.registry.Len(),
	})
}

// writeEvent frames one message as an SSE data event and flushes it.
func writeEvent(w io.Writer, flusher http.Flusher, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
