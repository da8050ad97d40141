package eventgraph

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handler is a callable registered on a dispatcher. All three handler kinds
// share this shape; they differ only in when the coordinator runs them.
//
// Handlers receive the raise context (carrying the cancellation signal, the
// raise correlation ID, and the raise logger), the sender, and the event
// value. Returning a non-nil error fails the raise for Raise callers; see
// SafeRaise for caller isolation.
type Handler[S, E any] func(ctx context.Context, sender S, event E) error

// Subscription undoes a subscribe call. Unsubscribe is idempotent and safe
// to call from any goroutine, including while a raise is in flight.
type Subscription struct {
	once   sync.Once
	remove func()
}

// Unsubscribe removes the handler. A raise already in flight keeps its
// snapshot and still delivers to the handler.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

type handlerEntry[S, E any] struct {
	id uint64
	fn Handler[S, E]
}

// handlerSet is a thread-safe multicast list of handlers of one kind.
// Writers are serialized by mu and publish copy-on-write snapshots; a raise
// iterates the snapshot it captured, so concurrent add/remove never affects
// an in-progress delivery and readers take no lock.
type handlerSet[S, E any] struct {
	kind HandlerKind

	mu      sync.Mutex
	nextID  uint64
	entries atomic.Pointer[[]handlerEntry[S, E]]
}

func newHandlerSet[S, E any](kind HandlerKind) *handlerSet[S, E] {
	return &handlerSet[S, E]{kind: kind}
}

func (s *handlerSet[S, E]) snapshot() []handlerEntry[S, E] {
	if p := s.entries.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *handlerSet[S, E]) empty() bool {
	return len(s.snapshot()) == 0
}

// add appends h in registration order and reports whether the set went from
// empty to non-empty.
func (s *handlerSet[S, E]) add(h Handler[S, E]) (id uint64, becameNonEmpty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id = s.nextID

	old := s.snapshot()
	next := make([]handlerEntry[S, E], len(old), len(old)+1)
	copy(next, old)
	next = append(next, handlerEntry[S, E]{id: id, fn: h})
	s.entries.Store(&next)

	return id, len(old) == 0
}

// remove deletes the entry with the given id and reports whether the set
// went from non-empty to empty.
func (s *handlerSet[S, E]) remove(id uint64) (becameEmpty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snapshot()
	if len(old) == 0 {
		return false
	}

	next := make([]handlerEntry[S, E], 0, len(old))
	found := false
	for _, e := range old {
		if e.id == id {
			found = true
			continue
		}
		next = append(next, e)
	}
	if !found {
		return false
	}

	s.entries.Store(&next)
	return len(next) == 0
}

// clear drops every handler and reports whether any were removed.
func (s *handlerSet[S, E]) clear() (removedAny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snapshot()
	if len(old) == 0 {
		return false
	}
	s.entries.Store(new([]handlerEntry[S, E]))
	return true
}

// invokeSequential calls each snapshot member in registration order, one
// completing before the next starts (later handlers may depend on side
// effects of earlier ones). The context is checked before each member
// starts; a member that has started is never interrupted mid-call.
func (s *handlerSet[S, E]) invokeSequential(ctx context.Context, sender S, event E) error {
	for i, e := range s.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := invokeHandler(ctx, s.kind, i, e.fn, sender, event); err != nil {
			return err
		}
	}
	return nil
}

// collectParallel starts every snapshot member on the raise's task group.
// It does not wait for them; the coordinator joins the group once the sync
// and sequential-async phases have finished.
func (s *handlerSet[S, E]) collectParallel(ctx context.Context, sender S, event E, run *raiseRun) {
	for i, e := range s.snapshot() {
		run.submit(func() error {
			return invokeHandler(ctx, s.kind, i, e.fn, sender, event)
		})
	}
}
