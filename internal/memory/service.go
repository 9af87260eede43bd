package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/session"
	"mcp-memory-gateway/internal/wikilink"
)

const (
	defaultSearchLimit = 10
	defaultListLimit   = 50
	listPreviewLength  = 200
)

// Notifier delivers side-effect announcements back to the originating
// session, e.g. memory.created after a successful create.
type Notifier interface {
	Publish(sessionID, method string, params any)
}

// Service implements the memory operations exposed as MCP tools. It owns no
// protocol concerns; the executor adapter shapes its results into content
// blocks.
type Service struct {
	store    Store
	notifier Notifier
	logger   logging.Logger
}

// NewService creates a memory service. notifier may be nil when no
// notification transport is attached (stdio mode).
func NewService(store Store, notifier Notifier, logger logging.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.WithComponent("memory"),
	}
}

// CreateParams are the validated arguments of memory_create.
type CreateParams struct {
	Content  string
	TenantID string
	UserID   string
	Metadata map[string]any
}

// Create stores a new memory, extracting wiki-links from its content, and
// announces it to the calling session when one is attached to the context.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Memory, error) {
	now := time.Now().UTC()
	m := &Memory{
		ID:        uuid.New().String(),
		TenantID:  params.TenantID,
		UserID:    params.UserID,
		Content:   params.Content,
		Metadata:  params.Metadata,
		WikiLinks: wikilink.Extract(params.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("creating memory: %w", err)
	}

	s.logger.InfoContext(ctx, "memory created", "memory_id", m.ID, "tenant_id", m.TenantID)

	if s.notifier != nil {
		if sid := session.FromContext(ctx); sid != "" {
			s.notifier.Publish(sid, "memory.created", map[string]any{
				"memory_id": m.ID,
				"tenant_id": m.TenantID,
			})
		}
	}

	return m, nil
}

// SearchResult is one scored entry of a memory_search result.
type SearchResult struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Score     float64        `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Search scores a tenant's memories by word overlap with the query and
// returns the best matches, highest score first.
func (s *Service) Search(ctx context.Context, query, tenantID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	memories, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	var results []SearchResult
	for _, m := range memories {
		content := strings.ToLower(m.Content)
		matched := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, SearchResult{
			ID:        m.ID,
			Content:   m.Content,
			Score:     float64(matched) / float64(len(words)),
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ListEntry is one entry of a memory_list result, with the content shortened
// to a preview.
type ListEntry struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// List pages through a tenant's memories, newest first.
func (s *Service) List(ctx context.Context, tenantID string, skip, limit int) ([]ListEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if skip < 0 {
		skip = 0
	}

	memories, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}

	if skip >= len(memories) {
		return nil, nil
	}
	memories = memories[skip:]
	if len(memories) > limit {
		memories = memories[:limit]
	}

	entries := make([]ListEntry, 0, len(memories))
	for _, m := range memories {
		entries = append(entries, ListEntry{
			ID:        m.ID,
			Content:   preview(m.Content),
			CreatedAt: m.CreatedAt,
		})
	}
	return entries, nil
}

// UpdateParams are the validated arguments of memory_update. Nil fields are
// left unchanged.
type UpdateParams struct {
	MemoryID string
	Content  *string
	Metadata map[string]any
}

// Update rewrites an existing memory, re-extracting wiki-links when the
// content changes.
func (s *Service) Update(ctx context.Context, params UpdateParams) (*Memory, error) {
	m, err := s.store.Get(ctx, params.MemoryID)
	if err != nil {
		return nil, err
	}

	if params.Content != nil {
		m.Content = *params.Content
		m.WikiLinks = wikilink.Extract(m.Content)
	}
	if params.Metadata != nil {
		m.Metadata = params.Metadata
	}
	m.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a memory by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Get fetches a memory by id.
func (s *Service) Get(ctx context.Context, id string) (*Memory, error) {
	return s.store.Get(ctx, id)
}

// TenantMemories returns all memories of a tenant, for resources/read.
func (s *Service) TenantMemories(ctx context.Context, tenantID string) ([]*Memory, error) {
	return s.store.ListByTenant(ctx, tenantID)
}

// Stats reports totals for the memory/stats custom method.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	total, tenants, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return map[string]any{
		"total_memories": total,
		"tenant_count":   tenants,
	}, nil
}

func preview(content string) string {
	if len(content) <= listPreviewLength {
		return content
	}
	return content[:listPreviewLength] + "..."
}
