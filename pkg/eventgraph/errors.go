package eventgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for construction and subscription.
var (
	// ErrNilContext indicates Raise or SafeRaise was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrNilHandler indicates a subscribe call received a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilSource indicates a bridge or view was created without a source.
	ErrNilSource = errors.New("bridge source cannot be nil")

	// ErrNilTarget indicates a bridge was created without a target.
	ErrNilTarget = errors.New("bridge target cannot be nil")

	// ErrNilConverter indicates a bridge was created without a converter.
	ErrNilConverter = errors.New("bridge converter cannot be nil")

	// ErrNilFilter indicates NewFilteredBridge received a nil filter.
	ErrNilFilter = errors.New("bridge filter cannot be nil")

	// ErrSelfBridge indicates an attempt to bridge a dispatcher to itself.
	ErrSelfBridge = errors.New("cannot bridge a dispatcher to itself")

	// ErrNotAssignable indicates As() was asked for a view type the event
	// type cannot be upcast to.
	ErrNotAssignable = errors.New("event type is not assignable to view type")
)

// HandlerKind identifies which handler list a handler belongs to.
type HandlerKind string

// Handler kinds.
const (
	KindSync     HandlerKind = "sync"
	KindAsync    HandlerKind = "async"
	KindParallel HandlerKind = "parallel"
)

// HandlerError wraps a failure returned by a handler during a raise.
// It records which kind of handler failed and its registration position.
type HandlerError struct {
	// Kind is the handler list the failing handler belonged to.
	Kind HandlerKind
	// Index is the handler's position in the raise snapshot.
	Index int
	// Err is the error the handler returned.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler %d: %v", e.Kind, e.Index, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// HandlerPanicError captures a panic raised inside a handler.
// It includes the stack trace for debugging.
type HandlerPanicError struct {
	// Kind is the handler list the panicking handler belonged to.
	Kind HandlerKind
	// Index is the handler's position in the raise snapshot.
	Index int
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("%s handler %d panicked: %v", e.Kind, e.Index, e.Value)
}
