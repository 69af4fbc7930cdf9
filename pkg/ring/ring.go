// Package ring provides a bounded, thread-safe ring buffer that overwrites
// the oldest element when full. It backs the measurement history kept for
// late-joining consumers: recent readings matter, stale ones do not.
package ring

import "sync"

// Stats holds cumulative counters for a ring buffer.
type Stats struct {
	Writes     uint64 // total Write calls
	Overwrites uint64 // writes that displaced an unread element
	Reads      uint64 // elements returned by Read/ReadBatch/Drain
}

// Buffer is a fixed-capacity circular buffer of T.
// All methods are safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the oldest element
	size  int
	stats Stats
}

// New creates a ring buffer with the given capacity. Capacity must be > 0;
// smaller values are clamped to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Write appends an element, overwriting the oldest one when full.
func (b *Buffer[T]) Write(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Writes++
	if b.size == len(b.items) {
		b.items[b.head] = item
		b.head = (b.head + 1) % len(b.items)
		b.stats.Overwrites++
		return
	}
	b.items[(b.head+b.size)%len(b.items)] = item
	b.size++
}

// Read removes and returns the oldest element. The second return value is
// false when the buffer is empty.
func (b *Buffer[T]) Read() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.size == 0 {
		return zero, false
	}
	item := b.items[b.head]
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.size--
	b.stats.Reads++
	return item, true
}

// Snapshot returns the buffered elements oldest-first without consuming them.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%len(b.items)]
	}
	return out
}

// Drain removes and returns all buffered elements oldest-first.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.size)
	var zero T
	for i := 0; i < b.size; i++ {
		idx := (b.head + i) % len(b.items)
		out[i] = b.items[idx]
		b.items[idx] = zero
	}
	b.stats.Reads += uint64(b.size)
	b.head = 0
	b.size = 0
	return out
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Stats returns a snapshot of the cumulative counters.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
