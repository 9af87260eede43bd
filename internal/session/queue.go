package session

import (
	"context"
	"sync"
	"time"
)

// NextResult tells a drain loop why Next returned.
type NextResult int

const (
	// NextItem means a message was dequeued.
	NextItem NextResult = iota
	// NextTimeout means the heartbeat interval elapsed with an empty queue.
	NextTimeout
	// NextClosed means the queue was closed or the context was cancelled.
	NextClosed
)

// Queue is an unbounded FIFO of pending outbound messages for one session.
// Any component may push; it is drained exclusively by the session's stream
// loop. Delivery preserves enqueue order.
type Queue struct {
	mu     sync.Mutex
	items  []any
	closed bool
	wake   chan struct{}
}

func newQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends a message. Pushing to a closed queue is a no-op and reports
// false.
func (q *Queue) Push(msg any) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	q.signal()
	return true
}

// Next returns the next message in FIFO order, blocking until one arrives,
// the timeout elapses, the context is cancelled or the queue is closed.
func (q *Queue) Next(ctx context.Context, timeout time.Duration) (any, NextResult) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, NextItem
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, NextClosed
		}

		select {
		case <-ctx.Done():
			return nil, NextClosed
		case <-timer.C:
			return nil, NextTimeout
		case <-q.wake:
		}
	}
}

// Close marks the queue closed and wakes any blocked drain loop. Messages
// still queued are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	q.signal()
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
