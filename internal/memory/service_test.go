package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/session"
)

type capturedNotification struct {
	SessionID string
	Method    string
	Params    any
}

type fakeNotifier struct {
	published []capturedNotification
}

func (f *fakeNotifier) Publish(sessionID, method string, params any) {
	f.published = append(f.published, capturedNotification{sessionID, method, params})
}

func newTestService(t *testing.T, notifier Notifier) *Service {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, notifier, logging.NoOp())
}

func TestCreateExtractsWikiLinks(t *testing.T) {
	svc := newTestService(t, nil)

	m, err := svc.Create(context.Background(), CreateParams{
		Content:  "met [[Alice]] about [[Project Zeus|zeus]]",
		TenantID: "acme",
		UserID:   "u1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, []string{"alice", "zeus"}, m.WikiLinks)

	stored, err := svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.WikiLinks, stored.WikiLinks)
}

func TestCreatePublishesNotificationToSession(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(t, notifier)

	ctx := session.NewContext(context.Background(), "sess-1")
	m, err := svc.Create(ctx, CreateParams{Content: "note", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, notifier.published, 1)
	assert.Equal(t, "sess-1", notifier.published[0].SessionID)
	assert.Equal(t, "memory.created", notifier.published[0].Method)
	params, ok := notifier.published[0].Params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, m.ID, params["memory_id"])
	assert.Equal(t, "acme", params["tenant_id"])
}

func TestCreateWithoutSessionSkipsNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(t, notifier)

	_, err := svc.Create(context.Background(), CreateParams{Content: "note", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, notifier.published)
}

func TestSearchFindsDistinctiveWord(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateParams{
		Content:  "the xylophone budget meeting went well",
		TenantID: "acme",
		UserID:   "u1",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{Content: "unrelated grocery list", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateParams{Content: "xylophone elsewhere", TenantID: "other", UserID: "u2"})
	require.NoError(t, err)

	results, err := svc.Search(ctx, "xylophone", "acme", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, created.ID, results[0].ID)
	assert.Equal(t, 1.0, results[0].Score)
}

func TestSearchScoresPartialMatches(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	full, err := svc.Create(ctx, CreateParams{Content: "kubernetes cluster upgrade", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)
	partial, err := svc.Create(ctx, CreateParams{Content: "kubernetes dashboards", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)

	results, err := svc.Search(ctx, "kubernetes upgrade", "acme", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, full.ID, results[0].ID)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, partial.ID, results[1].ID)
	assert.Equal(t, 0.5, results[1].Score)
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := newTestService(t, nil)
	results, err := svc.Search(context.Background(), "   ", "acme", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListPreviewAndPaging(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	long := strings.Repeat("x", 300)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, CreateParams{Content: long, TenantID: "acme", UserID: "u1"})
		require.NoError(t, err)
	}

	entries, err := svc.List(ctx, "acme", 0, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Content, listPreviewLength+3)
	assert.True(t, strings.HasSuffix(entries[0].Content, "..."))

	entries, err = svc.List(ctx, "acme", 2, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = svc.List(ctx, "acme", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateReextractsLinks(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, CreateParams{Content: "about [[Alpha]]", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)

	newContent := "now about [[Beta]]"
	updated, err := svc.Update(ctx, UpdateParams{MemoryID: m.ID, Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, updated.WikiLinks)
	assert.True(t, updated.UpdatedAt.After(m.UpdatedAt) || updated.UpdatedAt.Equal(m.UpdatedAt))

	_, err = svc.Update(ctx, UpdateParams{MemoryID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, CreateParams{Content: "ephemeral", TenantID: "acme", UserID: "u1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, m.ID))
	_, err = svc.Get(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, m.ID), ErrNotFound)
}

func TestStats(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for _, tenant := range []string{"acme", "acme", "globex"} {
		_, err := svc.Create(ctx, CreateParams{Content: "note", TenantID: tenant, UserID: "u1"})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats["total_memories"])
	assert.Equal(t, 2, stats["tenant_count"])
}
