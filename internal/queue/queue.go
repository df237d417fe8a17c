// Package queue provides a bounded FIFO that drops the oldest item when full.
package queue

import "sync"

// Ring is a goroutine-safe FIFO holding at most Cap items.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	size  int
}

// NewRing creates a Ring with the given capacity. Capacity below 1 is raised to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Enqueue adds an item to the tail, evicting the head when the ring is full.
// It reports whether an item was evicted.
func (q *Ring[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail := (q.head + q.size) % len(q.items)
	q.items[tail] = item
	if q.size == len(q.items) {
		q.head = (q.head + 1) % len(q.items)
		return true
	}
	q.size++

	return false
}

// Dequeue removes and returns the head item.
func (q *Ring[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--

	return item, true
}

// Snapshot returns the queued items from head to tail without removing them.
func (q *Ring[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.size)
	for i := range q.size {
		out[i] = q.items[(q.head+i)%len(q.items)]
	}

	return out
}

// Reset empties the ring.
func (q *Ring[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.items)
	q.head, q.size = 0, 0
}

// Length returns the number of queued items.
func (q *Ring[T]) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.size
}

// Cap returns the capacity of the ring.
func (q *Ring[T]) Cap() int { return len(q.items) }
