package eventgraph

import "sync"

// Bridge is a directed, typed edge from a source dispatcher to a target
// dispatcher. On every raise that reaches the source, the bridge's
// filter+convert step runs at most once and the converted value is
// republished to the target's handlers as part of the same raise.
//
// A bridge is registered on its source only while it is active, not
// disposed, and its target has handlers. The registration follows the
// target's liveness automatically, so a chain of bridges with no consumer
// at the end costs its upstream publishers nothing.
type Bridge[S, E, T any] struct {
	source  *Dispatcher[S, E]
	target  *Dispatcher[S, T]
	convert func(E) (T, bool)

	// mu serializes this bridge's own state transitions only. It is never
	// held while calling into a dispatcher, so no bridge transition can
	// block on another bridge's lock.
	mu             sync.Mutex
	active         bool
	disposed       bool
	onlyFromSource bool
	registered     bool
	livenessID     uint64
}

type bridgeConfig struct {
	active         bool
	onlyFromSource bool
}

// BridgeOption configures bridge creation.
type BridgeOption func(*bridgeConfig)

// BridgeInactive creates the bridge deactivated; activate it later with
// SetActive(true).
func BridgeInactive() BridgeOption {
	return func(cfg *bridgeConfig) {
		cfg.active = false
	}
}

// OnlyFromSource restricts the bridge to raises that originated at its
// declared source. Events that reach the source indirectly, through another
// bridge's republish, are ignored.
func OnlyFromSource() BridgeOption {
	return func(cfg *bridgeConfig) {
		cfg.onlyFromSource = true
	}
}

// NewBridge creates a bridge that converts every event arriving at source
// and republishes it to target.
func NewBridge[S, E, T any](source Publisher[S, E], target *Dispatcher[S, T], convert func(E) T, opts ...BridgeOption) (*Bridge[S, E, T], error) {
	if convert == nil {
		return nil, ErrNilConverter
	}
	return NewFilterConvertBridge(source, target, func(e E) (T, bool) {
		return convert(e), true
	}, opts...)
}

// NewFilteredBridge creates a bridge that republishes only events the
// filter accepts, converted by convert. The converter runs only for
// accepted events.
func NewFilteredBridge[S, E, T any](source Publisher[S, E], target *Dispatcher[S, T], filter func(E) bool, convert func(E) T, opts ...BridgeOption) (*Bridge[S, E, T], error) {
	if filter == nil {
		return nil, ErrNilFilter
	}
	if convert == nil {
		return nil, ErrNilConverter
	}
	return NewFilterConvertBridge(source, target, func(e E) (T, bool) {
		if !filter(e) {
			var zero T
			return zero, false
		}
		return convert(e), true
	}, opts...)
}

// NewFilterConvertBridge creates a bridge from a combined filter-converter:
// returning ok == false drops the event. Use this when filtering and
// conversion share work (a parse, say).
func NewFilterConvertBridge[S, E, T any](source Publisher[S, E], target *Dispatcher[S, T], filterConvert func(E) (T, bool), opts ...BridgeOption) (*Bridge[S, E, T], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	src := source.dispatcher()
	if src == nil {
		return nil, ErrNilSource
	}
	if target == nil {
		return nil, ErrNilTarget
	}
	if filterConvert == nil {
		return nil, ErrNilConverter
	}
	if node(src) == node(target) {
		return nil, ErrSelfBridge
	}

	cfg := bridgeConfig{active: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bridge[S, E, T]{
		source:         src,
		target:         target,
		convert:        filterConvert,
		active:         cfg.active,
		onlyFromSource: cfg.onlyFromSource,
	}
	src.adoptBridge(b)

	if cfg.active {
		b.subscribeToTarget()
		b.evaluate()
	}
	return b, nil
}

// NewRelay creates an identity bridge between two dispatchers of the same
// event type.
func NewRelay[S, E any](source Publisher[S, E], target *Dispatcher[S, E], opts ...BridgeOption) (*Bridge[S, E, E], error) {
	return NewFilterConvertBridge(source, target, identityConvert[E], opts...)
}

// identityConvert is the shared identity converter behind NewRelay. Go
// instantiates one function per event type; relays allocate nothing for it.
func identityConvert[E any](e E) (E, bool) {
	return e, true
}

// IsActive reports whether the bridge is active and not disposed.
func (b *Bridge[S, E, T]) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active && !b.disposed
}

// SetActive activates or deactivates the bridge. Deactivating unregisters
// it from the source and detaches the target liveness subscription;
// activating re-subscribes and re-evaluates. Reactivating a disposed bridge
// is a no-op.
func (b *Bridge[S, E, T]) SetActive(active bool) {
	b.mu.Lock()
	if b.disposed || b.active == active {
		b.mu.Unlock()
		return
	}
	b.active = active
	b.mu.Unlock()

	if active {
		b.subscribeToTarget()
	} else {
		b.unsubscribeFromTarget()
	}
	b.evaluate()
}

// IsDisposed reports whether the bridge has been disposed.
func (b *Bridge[S, E, T]) IsDisposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// Dispose deactivates the bridge and permanently disables reactivation.
// Dispose is idempotent.
func (b *Bridge[S, E, T]) Dispose() {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.disposed = true
	wasActive := b.active
	b.active = false
	b.mu.Unlock()

	if wasActive {
		b.unsubscribeFromTarget()
	}
	b.evaluate()
}

// OnlyFromSource reports whether the bridge ignores events that reached its
// source through another bridge's republish.
func (b *Bridge[S, E, T]) OnlyFromSource() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onlyFromSource
}

// SetOnlyFromSource sets the origin restriction.
func (b *Bridge[S, E, T]) SetOnlyFromSource(only bool) {
	b.mu.Lock()
	b.onlyFromSource = only
	b.mu.Unlock()
}

func (b *Bridge[S, E, T]) subscribeToTarget() {
	id := b.target.subscribeLiveness(b.evaluate)
	b.mu.Lock()
	b.livenessID = id
	b.mu.Unlock()
}

func (b *Bridge[S, E, T]) unsubscribeFromTarget() {
	b.mu.Lock()
	id := b.livenessID
	b.livenessID = 0
	b.mu.Unlock()
	if id != 0 {
		b.target.unsubscribeLiveness(id)
	}
}

// evaluate reconciles the bridge's registration on its source with its
// desired state. The registered flag flips before the source list is
// touched: registering can fire the source's liveness observers, which on a
// cyclic graph re-enters this bridge's evaluation on the same goroutine,
// and the early flag keeps that re-entry from registering twice.
func (b *Bridge[S, E, T]) evaluate() {
	b.mu.Lock()
	want := b.active && !b.disposed && b.target.HasHandlers()
	if want == b.registered {
		b.mu.Unlock()
		return
	}
	b.registered = want
	b.mu.Unlock()

	if want {
		b.source.registerBridge(b)
	} else {
		b.source.unregisterBridge(b)
	}
}

// prepare implements outbound. It runs the dedup and origin checks, then
// the filter+convert step at most once, and returns the queued delivery.
func (b *Bridge[S, E, T]) prepare(origin node, sender S, event E, visited map[node]struct{}) delivery {
	b.mu.Lock()
	restricted := b.onlyFromSource
	b.mu.Unlock()
	if restricted && origin != node(b.source) {
		return nil
	}

	if !b.target.AllowMultipleEvents() {
		if _, dup := visited[node(b.target)]; dup {
			return nil
		}
	}

	value, ok := b.convert(event)
	if !ok {
		return nil
	}

	visited[node(b.target)] = struct{}{}
	return &bridgeSender[S, T]{target: b.target, sender: sender, value: value}
}
