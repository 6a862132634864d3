package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push once the queue has been closed or abandoned.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO with a single consumer.
//
// Push never blocks: items accumulate in memory until the consumer takes
// them. The consumer either blocks in Pop or, when it has other event
// sources to watch, selects on Ready and drains with TryPop.
//
// Two ways to stop a queue:
//
//	Close    producer side; no more pushes, pending items are still delivered.
//	Abandon  consumer side; no more pushes, pending items are dropped.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v to the tail. It returns ErrClosed if the queue no longer
// accepts items.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Ready receives a value whenever an item may be available or the queue
// has been closed. A wake-up can be spurious; always follow with TryPop.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// TryPop removes the head without blocking.
//
//	(v, true, false)   an item was taken
//	(_, false, true)   the queue is closed and fully drained
//	(_, false, false)  nothing queued right now
func (q *Queue[T]) TryPop() (v T, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false, q.closed
	}

	v = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]

	// Keep the consumer awake while work (or the end-of-queue) remains.
	if len(q.items) > 0 || q.closed {
		q.signal()
	}
	return v, true, false
}

// Pop blocks until an item is available, the queue is closed and drained,
// or ctx is cancelled. ok is false in the latter two cases.
func (q *Queue[T]) Pop(ctx context.Context) (v T, ok bool) {
	for {
		item, got, done := q.TryPop()
		if got {
			return item, true
		}
		if done {
			return v, false
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return v, false
		}
	}
}

// Close stops accepting pushes. Items already queued are still delivered.
// Calling Close more than once is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Abandon stops accepting pushes and discards everything queued. It
// returns the number of items dropped.
func (q *Queue[T]) Abandon() int {
	q.mu.Lock()
	dropped := len(q.items)
	q.items = nil
	q.closed = true
	q.mu.Unlock()
	q.signal()
	return dropped
}

// Closed reports whether the queue has stopped accepting pushes.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of items waiting. Used for metrics snapshots.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
