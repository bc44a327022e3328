// Package ringbuf implements a bounded lock-free single-producer
// single-consumer ring buffer (spec §4.H's "control ring"). It is the
// only non-atomic-pointer, non-atomic-cell concurrency primitive the
// audio thread is allowed to touch: one goroutine (the control thread)
// calls TryPush, another (the audio thread) calls TryPop, and neither
// blocks or allocates after construction.
package ringbuf

import "sync/atomic"

// Ring is a fixed-capacity SPSC queue of T. Capacity is rounded up to
// the next power of two so index wrapping is a cheap mask instead of a
// modulo. T should be a small, allocation-free value type — the ring
// itself never allocates past New, but a T containing a slice or map
// would let the producer smuggle a heap pointer to the audio thread.
type Ring[T any] struct {
	buf  []T
	mask uint64
	head atomic.Uint64 // next write index; producer-owned
	tail atomic.Uint64 // next read index; consumer-owned
}

// New returns a Ring with capacity at least `capacity` (rounded up to a
// power of two, minimum 2).
func New[T any](capacity int) *Ring[T] {
	n := 2
	for n < capacity {
		n <<= 1
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Cap returns the ring's actual capacity (>= the requested capacity).
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Len returns the number of queued-but-unread elements. Safe to call
// from either side; the result may be stale by the time the caller acts
// on it, which is fine for the coalescing/backpressure use spec §4.H
// describes.
func (r *Ring[T]) Len() int {
	h := r.head.Load()
	t := r.tail.Load()
	return int(h - t)
}

// TryPush appends v, returning false without blocking if the ring is
// full. Only the single producer goroutine may call this.
func (r *Ring[T]) TryPush(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t >= uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// TryPop removes and returns the oldest element, or the zero value and
// false if the ring is empty. Only the single consumer goroutine may
// call this.
func (r *Ring[T]) TryPop() (T, bool) {
	t := r.tail.Load()
	h := r.head.Load()
	if t >= h {
		var zero T
		return zero, false
	}
	v := r.buf[t&r.mask]
	r.tail.Store(t + 1)
	return v, true
}
