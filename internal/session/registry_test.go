package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateResetsExistingSession(t *testing.T) {
	r := NewRegistry()

	first := r.Create("s1")
	require.True(t, r.Update("s1", func(s *Session) {
		s.State = StateInitialized
		s.TenantID = "acme"
	}))

	oldQueue, ok := r.Queue("s1")
	require.True(t, ok)

	// Reconnect with the same id: fresh state, fresh queue.
	second := r.Create("s1")
	assert.Equal(t, StateUninitialized, second.State)
	assert.Empty(t, second.TenantID)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))

	// The stale queue must be closed so the old drain loop exits.
	assert.False(t, oldQueue.Push("late"))

	fresh, ok := r.Queue("s1")
	require.True(t, ok)
	assert.True(t, fresh.Push("hello"))
}

func TestGetReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")

	snap, ok := r.Get("s1")
	require.True(t, ok)
	snap.State = StateClosed

	stored, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StateUninitialized, stored.State)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestTouchUpdatesLastActivity(t *testing.T) {
	r := NewRegistry()
	created := r.Create("s1")

	time.Sleep(5 * time.Millisecond)
	require.True(t, r.Touch("s1"))

	touched, ok := r.Get("s1")
	require.True(t, ok)
	assert.True(t, touched.LastActivity.After(created.LastActivity))

	assert.False(t, r.Touch("missing"))
}

func TestCloseReleasesQueue(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")

	q, ok := r.Queue("s1")
	require.True(t, ok)

	require.True(t, r.Close("s1"))
	_, ok = r.Get("s1")
	assert.False(t, ok)
	assert.False(t, q.Push("dropped"))

	// Push to a now-missing session is a no-op, not a crash.
	assert.False(t, r.Push("s1", "dropped"))
	assert.False(t, r.Close("s1"))
}

func TestListSnapshots(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		r.Create(fmt.Sprintf("s%d", i))
	}

	sessions := r.List()
	assert.Len(t, sessions, 5)
	assert.Equal(t, 5, r.Len())
}

func TestCleanupExpired(t *testing.T) {
	r := NewRegistry()
	r.Create("stale")
	r.Create("fresh")
	require.True(t, r.Update("stale", func(s *Session) {
		s.LastActivity = time.Now().UTC().Add(-time.Hour)
	}))

	removed := r.CleanupExpired(10 * time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := r.Get("stale")
	assert.False(t, ok)
	_, ok = r.Get("fresh")
	assert.True(t, ok)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n%5)
			r.Create(id)
			r.Touch(id)
			r.Push(id, n)
			r.Get(id)
			r.List()
			if n%2 == 0 {
				r.Close(id)
			}
		}(i)
	}
	wg.Wait()
}

func TestQueueFIFOOrder(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")
	q, _ := r.Queue("s1")

	for i := 0; i < 10; i++ {
		require.True(t, q.Push(i))
	}
	assert.Equal(t, 10, q.Len())

	for i := 0; i < 10; i++ {
		msg, res := q.Next(context.Background(), time.Second)
		require.Equal(t, NextItem, res)
		assert.Equal(t, i, msg)
	}
}

func TestQueueNextTimeout(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")
	q, _ := r.Queue("s1")

	start := time.Now()
	_, res := q.Next(context.Background(), 20*time.Millisecond)
	assert.Equal(t, NextTimeout, res)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueueNextWakesOnPush(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")
	q, _ := r.Queue("s1")

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push("late arrival")
	}()

	msg, res := q.Next(context.Background(), time.Second)
	require.Equal(t, NextItem, res)
	assert.Equal(t, "late arrival", msg)
}

func TestQueueNextClosed(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")
	q, _ := r.Queue("s1")

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Close()
	}()

	_, res := q.Next(context.Background(), time.Second)
	assert.Equal(t, NextClosed, res)
}

func TestQueueNextCancelledContext(t *testing.T) {
	r := NewRegistry()
	r.Create("s1")
	q, _ := r.Queue("s1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, res := q.Next(ctx, time.Second)
	assert.Equal(t, NextClosed, res)
}
