// Package transport implements the gateway's wire surfaces: a newline-framed
// stdio loop and an HTTP server with Server-Sent Events streaming. Both feed
// decoded requests to the same dispatcher.
package transport

import (
	"context"
	"time"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
)

// Dispatcher routes one decoded request against a session and always
// produces a response carrying the request's id.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, req *protocol.Request) *protocol.Response
}

// RunJanitor closes sessions idle longer than maxAge, sweeping every
// interval until the context ends.
func RunJanitor(ctx context.Context, registry *session.Registry, maxAge, interval time.Duration, logger logging.Logger) {
	log := logger.WithComponent("janitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.CleanupExpired(maxAge); n > 0 {
				log.Info("expired sessions closed", "count", n, "max_age", maxAge.String())
			}
		}
	}
}
