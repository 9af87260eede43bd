package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/protocol"
)

const wsWriteTimeout = 10 * time.Second

// WSHub mirrors every published notification to all connected WebSocket
// observers. It implements notify.Broadcaster; observers are read-only,
// incoming frames are discarded.
type WSHub struct {
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWSHub creates an empty hub.
func NewWSHub(logger logging.Logger) *WSHub {
	return &WSHub{
		logger: logger.WithComponent("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// HandleUpgrade upgrades the connection and keeps it registered until the
// client disconnects.
func (h *WSHub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.InfoContext(r.Context(), "observer connected", "remote", conn.RemoteAddr().String())

	// Read loop exists only to detect the close; payloads are ignored.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends the notification to every observer, dropping connections
// whose writes fail.
func (h *WSHub) Broadcast(method string, params any) {
	notification := protocol.NewNotification(method, params)

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(notification); err != nil {
			delete(h.conns, conn)
			_ = conn.Close()
			h.logger.Debug("observer dropped", "error", err)
		}
	}
}

// Count returns the number of connected observers.
func (h *WSHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *WSHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if present {
		_ = conn.Close()
	}
}
