// Package queue provides the bounded, runtime-resizable FIFO the engine
// schedules chunk jobs through.
package queue

import (
	"sync"
	"sync/atomic"
)

// Bounded is a bounded FIFO handoff with runtime-adjustable capacity.
// Pushes never block: a push against a full queue is rejected and
// counted, which is the engine's backpressure signal.
type Bounded[T any] struct {
	mu     sync.RWMutex
	ch     chan T
	size   int
	closed bool

	pushes  atomic.Int64
	rejects atomic.Int64
}

// NewBounded creates a queue with the given capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{ch: make(chan T, capacity), size: capacity}
}

// TryPush enqueues v without blocking. It reports false when the queue
// is at capacity or closed; only capacity rejections are counted.
func (q *Bounded[T]) TryPush(v T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- v:
		q.pushes.Add(1)
		return true
	default:
		q.rejects.Add(1)
		return false
	}
}

// Chan returns the receive side of the current backing channel.
// Consumers must re-call Chan after a receive reports closed: Resize
// swaps in a new backing channel and closes the old one to wake
// readers blocked on a stale snapshot.
func (q *Bounded[T]) Chan() <-chan T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.ch
}

// Resize replaces the backing channel with one of the new capacity,
// carrying queued items over in order. The effective capacity never
// drops below the number of items currently queued, so nothing is lost.
func (q *Bounded[T]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || capacity == q.size {
		return
	}

	var items []T
drain:
	for {
		select {
		case v := <-q.ch:
			items = append(items, v)
		default:
			break drain
		}
	}
	if capacity < len(items) {
		capacity = len(items)
	}
	old := q.ch
	q.ch = make(chan T, capacity)
	q.size = capacity
	for _, v := range items {
		q.ch <- v
	}
	close(old)
}

// Close rejects further pushes and closes the backing channel. Items
// already queued remain receivable until drained; consumers observe
// closed-and-empty as the shutdown signal.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Closed reports whether Close was called.
func (q *Bounded[T]) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Depth returns the number of items currently queued.
func (q *Bounded[T]) Depth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ch)
}

// Cap returns the current capacity.
func (q *Bounded[T]) Cap() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Stats returns queue counters.
func (q *Bounded[T]) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Stats{
		Capacity: q.size,
		Depth:    len(q.ch),
		Pushes:   q.pushes.Load(),
		Rejects:  q.rejects.Load(),
	}
}

// Stats contains queue statistics.
type Stats struct {
	Capacity int   `json:"capacity"`
	Depth    int   `json:"depth"`
	Pushes   int64 `json:"pushes"`
	Rejects  int64 `json:"rejects"`
}
