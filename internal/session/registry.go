// Package session provides the concurrency-safe session registry and the
// per-session outbound message queues for the MCP memory gateway.
//
// Sessions are ephemeral and transport-bound: they never survive a process
// restart, and reconnecting with an existing id resets the session to a
// fresh state rather than resuming the old one.
package session

import (
	"sync"
	"time"
)

// State is a session's lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateClosed        State = "closed"
)

// Session holds the protocol state of one logical client connection. It is
// owned by the Registry; callers receive value snapshots and mutate through
// the Registry's synchronized methods only.
type Session struct {
	ID           string         `json:"session_id"`
	State        State          `json:"state"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
	TenantID     string         `json:"tenant_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Registry is the single synchronized store of sessions and their outbound
// queues. All access goes through one lock; sessions are coarse-grained,
// short-lived objects.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	queues   map[string]*Queue
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		queues:   make(map[string]*Queue),
	}
}

// Create registers a session under the given id. An existing session with
// the same id is unconditionally replaced with a fresh state and a fresh
// queue; the old queue is closed so any stale drain loop exits.
func (r *Registry) Create(id string) Session {
	now := time.Now().UTC()
	s := &Session{
		ID:           id,
		State:        StateUninitialized,
		CreatedAt:    now,
		LastActivity: now,
		Capabilities: make(map[string]any),
		Metadata:     make(map[string]any),
	}

	r.mu.Lock()
	if old, ok := r.queues[id]; ok {
		old.Close()
	}
	r.sessions[id] = s
	r.queues[id] = newQueue()
	r.mu.Unlock()

	return *s
}

// Get returns a snapshot of the session, if present.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Update applies fn to the session under the registry lock. It reports
// whether the session existed.
func (r *Registry) Update(id string, fn func(*Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	fn(s)
	return true
}

// Touch updates the session's last-activity timestamp.
func (r *Registry) Touch(id string) bool {
	return r.Update(id, func(s *Session) {
		s.LastActivity = time.Now().UTC()
	})
}

// Close removes the session and releases its outbound queue. Closing an
// unknown id is a no-op.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked(id)
}

func (r *Registry) closeLocked(id string) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.State = StateClosed
	delete(r.sessions, id)
	if q, ok := r.queues[id]; ok {
		q.Close()
		delete(r.queues, id)
	}
	return true
}

// Queue returns the session's outbound queue, if the session exists.
func (r *Registry) Queue(id string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[id]
	return q, ok
}

// Push enqueues a message onto the session's outbound queue. Pushing to a
// missing or closed session is a no-op; in-flight work whose session is
// already gone simply has its output discarded.
func (r *Registry) Push(id string, msg any) bool {
	r.mu.RLock()
	q, ok := r.queues[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return q.Push(msg)
}

// List returns a snapshot of all sessions. The lock is not held across the
// caller's traversal.
func (r *Registry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CleanupExpired removes sessions whose last activity is older than maxAge
// and returns how many were removed.
func (r *Registry) CleanupExpired(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.LastActivity.Before(cutoff) {
			r.closeLocked(id)
			removed++
		}
	}
	return removed
}
