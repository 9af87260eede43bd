// Package memory implements the demo memory service that backs the
// gateway's tool executor: a tenant-scoped store of free-form memories with
// wiki-link extraction and naive keyword search.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a memory id does not exist.
var ErrNotFound = errors.New("memory not found")

// Memory is a single stored memory entry.
type Memory struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	UserID    string         `json:"user_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	WikiLinks []string       `json:"wiki_links,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is the persistence backend for memories. Implementations must be
// safe for concurrent use.
type Store interface {
	Create(ctx context.Context, m *Memory) error
	Get(ctx context.Context, id string) (*Memory, error)
	Update(ctx context.Context, m *Memory) error
	Delete(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Memory, error)
	Count(ctx context.Context) (total, tenants int, err error)
	Close() error
}
