package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	wiki_links TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_tenant ON memories(tenant_id);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);
`

// SQLiteStore persists memories in a SQLite database. Use dsn ":memory:"
// for an ephemeral store in tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// table-lock errors under concurrent tool calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Create inserts a new memory.
func (s *SQLiteStore) Create(ctx context.Context, m *Memory) error {
	metadata, links, err := encodeJSONColumns(m)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, tenant_id, user_id, content, metadata, wiki_links, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TenantID, m.UserID, m.Content, metadata, links, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting memory: %w", err)
	}
	return nil
}

// Get fetches a memory by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, content, metadata, wiki_links, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	return scanMemory(row)
}

// Update rewrites a memory's mutable fields.
func (s *SQLiteStore) Update(ctx context.Context, m *Memory) error {
	metadata, links, err := encodeJSONColumns(m)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content = ?, metadata = ?, wiki_links = ?, updated_at = ? WHERE id = ?`,
		m.Content, metadata, links, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("updating memory: %w", err)
	}
	return requireRow(res)
}

// Delete removes a memory by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}
	return requireRow(res)
}

// ListByTenant returns all memories of a tenant, newest first.
func (s *SQLiteStore) ListByTenant(ctx context.Context, tenantID string) ([]*Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, user_id, content, metadata, wiki_links, created_at, updated_at
		 FROM memories WHERE tenant_id = ? ORDER BY created_at DESC, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Count returns the total number of memories and of distinct tenants.
func (s *SQLiteStore) Count(ctx context.Context) (total, tenants int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT tenant_id) FROM memories`)
	if err := row.Scan(&total, &tenants); err != nil {
		return 0, 0, fmt.Errorf("counting memories: %w", err)
	}
	return total, tenants, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var (
		m              Memory
		metadata, links string
	)
	err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Content, &metadata, &links, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning memory: %w", err)
	}

	if err := json.Unmarshal([]byte(metadata), &m.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(links), &m.WikiLinks); err != nil {
		return nil, fmt.Errorf("decoding wiki links: %w", err)
	}
	return &m, nil
}

func encodeJSONColumns(m *Memory) (metadata, links string, err error) {
	md := m.Metadata
	if md == nil {
		md = map[string]any{}
	}
	wl := m.WikiLinks
	if wl == nil {
		wl = []string{}
	}

	mdBytes, err := json.Marshal(md)
	if err != nil {
		return "", "", fmt.Errorf("encoding metadata: %w", err)
	}
	wlBytes, err := json.Marshal(wl)
	if err != nil {
		return "", "", fmt.Errorf("encoding wiki links: %w", err)
	}
	return string(mdBytes), string(wlBytes), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
