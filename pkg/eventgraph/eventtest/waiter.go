package eventtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/randalmurphal/eventgraph/pkg/eventgraph"
)

// ErrWaitInProgress indicates a second Wait was issued while one was
// already in flight. Overlapping waits are a usage error, not a silent
// race.
var ErrWaitInProgress = errors.New("another Wait is already in progress")

// Waiter records events from a dispatcher into a fixed-capacity ring and
// lets a test block until N events have arrived.
//
// Example:
//
//	w, _ := eventtest.NewWaiter[eventgraph.None, string](d.Events(), 16)
//	defer w.Close()
//	// ... code under test raises on d ...
//	got, err := w.Wait(ctx, 3)
type Waiter[S, E any] struct {
	mu      sync.Mutex
	ring    *Ring[E]
	waiting bool
	notify  chan struct{}
	sub     *eventgraph.Subscription
}

// NewWaiter subscribes a recording handler to src. capacity bounds the
// number of buffered events; when full, the oldest are dropped.
func NewWaiter[S, E any](src eventgraph.Subscribable[S, E], capacity int) (*Waiter[S, E], error) {
	w := &Waiter[S, E]{
		ring:   NewRing[E](capacity),
		notify: make(chan struct{}, 1),
	}
	sub, err := src.OnSync(w.record)
	if err != nil {
		return nil, err
	}
	w.sub = sub
	return w, nil
}

func (w *Waiter[S, E]) record(_ context.Context, _ S, event E) error {
	w.mu.Lock()
	w.ring.Push(event)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until n events have been recorded, consumes them from the
// buffer, and returns them in arrival order. It returns ctx.Err() when the
// context ends first and ErrWaitInProgress when another Wait is already in
// flight.
func (w *Waiter[S, E]) Wait(ctx context.Context, n int) ([]E, error) {
	if n <= 0 {
		return nil, nil
	}
	if n > w.ring.Cap() {
		return nil, fmt.Errorf("wait for %d events exceeds buffer capacity %d", n, w.ring.Cap())
	}

	w.mu.Lock()
	if w.waiting {
		w.mu.Unlock()
		return nil, ErrWaitInProgress
	}
	w.waiting = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.waiting = false
		w.mu.Unlock()
	}()

	for {
		w.mu.Lock()
		if w.ring.Len() >= n {
			out := make([]E, 0, n)
			for len(out) < n {
				v, _ := w.ring.Pop()
				out = append(out, v)
			}
			w.mu.Unlock()
			return out, nil
		}
		w.mu.Unlock()

		select {
		case <-w.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Events returns the buffered events in arrival order without consuming
// them.
func (w *Waiter[S, E]) Events() []E {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.Snapshot()
}

// Reset discards all buffered events. The subscription stays active.
func (w *Waiter[S, E]) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if _, ok := w.ring.Pop(); !ok {
			return
		}
	}
}

// Close unsubscribes the recording handler.
func (w *Waiter[S, E]) Close() {
	w.sub.Unsubscribe()
}
