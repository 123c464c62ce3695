// Package queue provides the unbounded FIFO that decouples beacon ingress
// from the per-category detector workers. Producers never block; consumers
// poll and sleep briefly when the queue is empty.
package queue

import "sync"

// Queue is a thread-safe unbounded FIFO.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends an item. Never blocks.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Pop removes and returns the oldest item, or false when empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero // release the reference
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil // let the backing array go once drained
	}
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
