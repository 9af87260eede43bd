package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
)

const maxLineBytes = 1 << 20

// StdioServer reads newline-delimited JSON-RPC from input and writes
// responses to output. It owns a single implicit session for the lifetime of
// the loop; server-initiated notifications for that session are interleaved
// onto the same output stream.
type StdioServer struct {
	input      io.Reader
	output     io.Writer
	registry   *session.Registry
	dispatcher Dispatcher
	logger     logging.Logger

	mu      sync.Mutex
	encoder *json.Encoder
}

// NewStdioServer creates a stdio server over the given streams.
func NewStdioServer(input io.Reader, output io.Writer, registry *session.Registry, dispatcher Dispatcher, logger logging.Logger) *StdioServer {
	return &StdioServer{
		input:      input,
		output:     output,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger.WithComponent("stdio"),
		encoder:    json.NewEncoder(output),
	}
}

// Run processes input until EOF or context cancellation. The session is
// closed on exit.
func (s *StdioServer) Run(ctx context.Context) error {
	sessionID := uuid.New().String()
	s.registry.Create(sessionID)
	defer s.registry.Close(sessionID)

	s.logger.InfoContext(ctx, "stdio session started", "session_id", sessionID)

	queue, ok := s.registry.Queue(sessionID)
	if ok {
		go s.drainNotifications(ctx, queue)
	}

	scanner := bufio.NewScanner(s.input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req, err := protocol.DecodeRequest([]byte(line))
		if err != nil {
			// The id could not be recovered, so the error response
			// carries a null id.
			if werr := s.write(protocol.NewErrorResponse(nil, toRPCError(err))); werr != nil {
				return fmt.Errorf("writing error response: %w", werr)
			}
			continue
		}

		// Client-side notifications are consumed without an answer.
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.DebugContext(ctx, "notification received", "method", req.Method)
			continue
		}

		resp := s.dispatcher.Dispatch(ctx, sessionID, req)
		if !req.HasID() {
			continue
		}
		if err := s.write(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	s.logger.InfoContext(ctx, "stdio session ended", "session_id", sessionID)
	return nil
}

// drainNotifications forwards queued server notifications onto stdout. Stdio
// has no heartbeat contract, so timeouts just re-arm the wait.
func (s *StdioServer) drainNotifications(ctx context.Context, queue *session.Queue) {
	for {
		msg, result := queue.Next(ctx, time.Minute)
		switch result {
		case session.NextItem:
			if err := s.write(msg); err != nil {
				s.logger.Warn("notification write failed", "error", err)
				return
			}
		case session.NextClosed:
			return
		}
	}
}

func (s *StdioServer) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder.Encode(v)
}

func toRPCError(err error) *protocol.Error {
	if rpcErr, ok := err.(*protocol.Error); ok {
		return rpcErr
	}
	return protocol.NewError(protocol.InternalError, "Internal error", err.Error())
}
