// Package buffer provides an unbounded FIFO queue shared by subscriptions and writers.
//
// A Growable never drops items: it doubles its backing ring once it is 70% full.
// Subscriptions use it for their FetchState sequence (closed on release) and the
// reading writer drains it in batches.
package buffer

import "sync"

// growThreshold is the fill percentage that triggers a resize.
const growThreshold = 70

// Growable is a goroutine-safe ring buffer that grows instead of blocking senders.
type Growable[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	tail   int
	count  int
	closed bool

	sent     int64
	received int64
	resizes  int
}

// Stats is a point-in-time view of a buffer.
type Stats struct {
	Count    int
	Capacity int
	Sent     int64 // items accepted by Send
	Received int64 // items handed out to receivers
	Resizes  int
}

// New creates a buffer with the given initial capacity (minimum 1).
func New[T any](capacity int) *Growable[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Growable[T]{ring: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. Returns false once the buffer is closed.
func (b *Growable[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	limit := len(b.ring) * growThreshold / 100
	if limit < 1 {
		limit = 1
	}
	if b.count+1 >= limit {
		b.grow()
	}

	b.ring[b.tail] = item
	b.tail = (b.tail + 1) % len(b.ring)
	b.count++
	b.sent++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed and empty.
func (b *Growable[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// TryReceive returns the oldest item without blocking.
func (b *Growable[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.popLocked(), true
}

// DrainTo removes up to max items (all of them when max <= 0).
func (b *Growable[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	n := b.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.popLocked()
	}
	return out
}

// Close stops accepting items and wakes blocked receivers. Remaining items
// can still be received. Safe to call more than once.
func (b *Growable[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (b *Growable[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of queued items.
func (b *Growable[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring capacity.
func (b *Growable[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Stats returns counters for monitoring.
func (b *Growable[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:    b.count,
		Capacity: len(b.ring),
		Sent:     b.sent,
		Received: b.received,
		Resizes:  b.resizes,
	}
}

// popLocked removes the head item. Caller holds mu and count > 0.
func (b *Growable[T]) popLocked() T {
	var zero T
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % len(b.ring)
	b.count--
	b.received++
	return item
}

// grow doubles the ring, unwrapping it so head is 0. Caller holds mu.
func (b *Growable[T]) grow() {
	next := make([]T, len(b.ring)*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.ring[b.head:b.tail])
		} else {
			n := copy(next, b.ring[b.head:])
			copy(next[n:], b.ring[:b.tail])
		}
	}
	b.ring = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
