// Package notify implements the outbound notification pump: any component
// can push a server-initiated notification onto a session's queue, from
// where the session's stream loop delivers it independently of any
// request/response pairing.
package notify

import (
	"sync"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
)

// Notification method names emitted by the gateway.
const (
	MethodSessionConnected    = "session.connected"
	MethodSessionHeartbeat    = "session.heartbeat"
	MethodSessionDisconnected = "session.disconnected"
	MethodMemoryCreated       = "memory.created"
)

// Broadcaster mirrors notifications to observers outside the per-session
// streams, e.g. the WebSocket hub.
type Broadcaster interface {
	Broadcast(method string, params any)
}

// Pump fans notifications into per-session outbound queues. Pushing to a
// session that no longer exists is a silent no-op.
type Pump struct {
	registry *session.Registry
	logger   logging.Logger

	mu          sync.RWMutex
	broadcaster Broadcaster
}

// NewPump creates a pump bound to the session registry.
func NewPump(registry *session.Registry, logger logging.Logger) *Pump {
	return &Pump{
		registry: registry,
		logger:   logger.WithComponent("notify"),
	}
}

// AttachBroadcaster wires an additional observer for every published
// notification.
func (p *Pump) AttachBroadcaster(b Broadcaster) {
	p.mu.Lock()
	p.broadcaster = b
	p.mu.Unlock()
}

// Publish enqueues a notification for the session and mirrors it to the
// attached broadcaster, if any.
func (p *Pump) Publish(sessionID, method string, params any) {
	notification := protocol.NewNotification(method, params)

	if !p.registry.Push(sessionID, notification) {
		p.logger.Debug("notification dropped, session gone",
			"session_id", sessionID, "method", method)
	}

	p.mu.RLock()
	b := p.broadcaster
	p.mu.RUnlock()
	if b != nil {
		b.Broadcast(method, params)
	}
}
