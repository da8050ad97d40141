package eventgraph

import (
	"context"
	"fmt"
	"reflect"
)

// View presents a dispatcher of a concrete event type as a subscription
// surface for a base interface type. It performs no runtime transformation
// of event values: each registration is adapted with a zero-conversion
// interface upcast. Use a Bridge instead when an actual structural
// conversion is needed (exposing a mutable value as an immutable view,
// say) - a view never converts.
type View[S, B any] struct {
	onSync      func(Handler[S, B]) (*Subscription, error)
	onAsync     func(Handler[S, B]) (*Subscription, error)
	onParallel  func(Handler[S, B]) (*Subscription, error)
	hasHandlers func() bool
}

var _ Subscribable[None, error] = (*View[None, error])(nil)

// As presents source's event stream as a stream of the interface type B.
//
// Go generics cannot express "E implements B" as a constraint, so the
// relationship is validated here, once, at the point of use: B must be an
// interface type and E must be assignable to it. Both failures are
// reported immediately with ErrNotAssignable; nothing is deferred to
// delivery time.
func As[B any, S, E any](source Publisher[S, E]) (*View[S, B], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	d := source.dispatcher()
	if d == nil {
		return nil, ErrNilSource
	}

	eventType := reflect.TypeFor[E]()
	baseType := reflect.TypeFor[B]()
	if baseType.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: view type %s is not an interface", ErrNotAssignable, baseType)
	}
	if !eventType.AssignableTo(baseType) {
		return nil, fmt.Errorf("%w: %s does not implement %s", ErrNotAssignable, eventType, baseType)
	}

	return &View[S, B]{
		onSync: func(h Handler[S, B]) (*Subscription, error) {
			return d.OnSync(upcast[S, B, E](h))
		},
		onAsync: func(h Handler[S, B]) (*Subscription, error) {
			return d.OnAsync(upcast[S, B, E](h))
		},
		onParallel: func(h Handler[S, B]) (*Subscription, error) {
			return d.OnParallel(upcast[S, B, E](h))
		},
		hasHandlers: d.HasHandlers,
	}, nil
}

// upcast adapts a base-typed handler to the concrete event type. The
// assignability was checked by As; the assertion here is the interface
// upcast itself, not a conversion.
func upcast[S, B, E any](h Handler[S, B]) Handler[S, E] {
	if h == nil {
		// Preserved so the underlying subscribe reports ErrNilHandler.
		return nil
	}
	return func(ctx context.Context, sender S, event E) error {
		base, _ := any(event).(B)
		return h(ctx, sender, base)
	}
}

// OnSync subscribes a synchronous handler through the view.
func (v *View[S, B]) OnSync(h Handler[S, B]) (*Subscription, error) {
	return v.onSync(h)
}

// OnAsync subscribes a sequential-async handler through the view.
func (v *View[S, B]) OnAsync(h Handler[S, B]) (*Subscription, error) {
	return v.onAsync(h)
}

// OnParallel subscribes a parallel handler through the view.
func (v *View[S, B]) OnParallel(h Handler[S, B]) (*Subscription, error) {
	return v.onParallel(h)
}

// HasHandlers reports whether anything consumes events from the underlying
// dispatcher.
func (v *View[S, B]) HasHandlers() bool {
	return v.hasHandlers()
}
