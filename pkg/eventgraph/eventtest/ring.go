// Package eventtest provides helpers for testing code that publishes
// through eventgraph dispatchers: a fixed-capacity ring buffer and a
// Waiter that blocks until N events have arrived.
package eventtest

// Ring is a fixed-capacity circular buffer. When full, Push overwrites the
// oldest element. Ring is not safe for concurrent use; Waiter guards its
// ring with a mutex.
type Ring[T any] struct {
	buf   []T
	head  int
	count int
}

// NewRing creates a ring buffer holding at most capacity elements.
// Panics if capacity is not positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("eventtest: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, overwriting the oldest element when the ring is full.
func (r *Ring[T]) Push(v T) {
	tail := (r.head + r.count) % len(r.buf)
	r.buf[tail] = v
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	return v, true
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap returns the ring's capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Snapshot returns the buffered elements in arrival order without
// consuming them.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
