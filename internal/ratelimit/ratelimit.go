// Package ratelimit provides per-client request limiting for the HTTP
// surface, with an in-process sliding window and a Redis-backed variant for
// multi-instance deployments.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"mcp-memory-gateway/internal/logging"
)

// Config bounds requests per key inside a rolling window.
type Config struct {
	Requests int
	Window   time.Duration
}

// Limiter reports whether the keyed client may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps a sliding window of request timestamps per key.
type MemoryLimiter struct {
	cfg Config

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:  cfg,
		hits: make(map[string][]time.Time),
	}
}

// Allow prunes expired hits for the key and admits the request while the
// window has room.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.cfg.Requests {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

// Prune drops keys whose every hit has aged out of the window.
func (l *MemoryLimiter) Prune() {
	cutoff := time.Now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, hits := range l.hits {
		live := false
		for _, t := range hits {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.hits, key)
		}
	}
}

// Middleware rejects over-limit clients with 429, keyed by remote IP. A
// limiter failure fails open so a broken Redis does not take the gateway
// down with it.
func Middleware(limiter Limiter, logger logging.Logger) func(http.Handler) http.Handler {
	log := logger.WithComponent("ratelimit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.WarnContext(r.Context(), "limiter unavailable, allowing request",
					"key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				log.InfoContext(r.Context(), "request throttled", "key", key)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
