package eventgraph

// Subscribable is the registration surface shared by Dispatcher, Stream,
// and View: the three subscribe operations plus the liveness query.
type Subscribable[S, E any] interface {
	OnSync(Handler[S, E]) (*Subscription, error)
	OnAsync(Handler[S, E]) (*Subscription, error)
	OnParallel(Handler[S, E]) (*Subscription, error)
	HasHandlers() bool
}

// Publisher is anything that can act as the source of a bridge or a view:
// a Dispatcher or its Stream façade.
type Publisher[S, E any] interface {
	dispatcher() *Dispatcher[S, E]
}

func (d *Dispatcher[S, E]) dispatcher() *Dispatcher[S, E] { return d }

// Stream is the read-only registration façade of a dispatcher. It offers
// subscribe/unsubscribe for the three handler kinds and can act as a bridge
// source, while Raise and SafeRaise stay reserved to the dispatcher's
// owner. Hand a Stream to code that should consume events but never
// publish them.
type Stream[S, E any] struct {
	d *Dispatcher[S, E]
}

var _ Subscribable[None, int] = (*Stream[None, int])(nil)

func (s *Stream[S, E]) dispatcher() *Dispatcher[S, E] { return s.d }

// OnSync subscribes a synchronous handler.
func (s *Stream[S, E]) OnSync(h Handler[S, E]) (*Subscription, error) {
	return s.d.OnSync(h)
}

// OnAsync subscribes a sequential-async handler.
func (s *Stream[S, E]) OnAsync(h Handler[S, E]) (*Subscription, error) {
	return s.d.OnAsync(h)
}

// OnParallel subscribes a parallel handler.
func (s *Stream[S, E]) OnParallel(h Handler[S, E]) (*Subscription, error) {
	return s.d.OnParallel(h)
}

// HasHandlers reports whether anything consumes events from the underlying
// dispatcher.
func (s *Stream[S, E]) HasHandlers() bool {
	return s.d.HasHandlers()
}
