package eventgraph

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"
	"github.com/randalmurphal/eventgraph/pkg/eventgraph/observability"
)

// None is the sender type for dispatchers that carry no sender.
type None = struct{}

// Simple is a Dispatcher whose raises carry no sender. Pass None{} to Raise.
type Simple[E any] = Dispatcher[None, E]

// node is the minimal capability view of a dispatcher used by bridges and
// the raise coordinator for dedup and liveness bookkeeping, so a bridge can
// treat heterogeneous target types uniformly.
type node interface {
	HasHandlers() bool
	AllowMultipleEvents() bool
}

// outbound is a registered bridge as seen from its source dispatcher.
type outbound[S, E any] interface {
	// prepare evaluates the bridge for one arrival of event at the source
	// and returns the queued delivery, or nil when the bridge does not fire
	// (onlyFromSource mismatch, duplicate target, or filter rejection).
	prepare(origin node, sender S, event E, visited map[node]struct{}) delivery
}

// disposable is the lifecycle capability a dispatcher keeps for bridges it
// created, so RemoveAll can dispose them without knowing their target types.
type disposable interface {
	Dispose()
}

type livenessEntry struct {
	id uint64
	fn func()
}

// Dispatcher is the publication endpoint for one event type E, carrying an
// optional sender of type S alongside each event. It owns the three handler
// lists, the set of currently-registered outbound bridges, and the liveness
// fan-out that inbound bridges observe.
//
// All methods are safe for concurrent use, including while a raise is in
// flight. Raise and SafeRaise are reserved to the dispatcher's owner;
// expose Events() to code that should only subscribe or create bridges.
type Dispatcher[S, E any] struct {
	name    string
	logger  *slog.Logger
	pool    *pond.WorkerPool
	spans   observability.SpanManager
	metrics observability.MetricsRecorder

	syncHandlers     *handlerSet[S, E]
	asyncHandlers    *handlerSet[S, E]
	parallelHandlers *handlerSet[S, E]

	// Registered outbound bridges, in registration order. Copy-on-write:
	// the raise coordinator reads the snapshot without locking.
	bridgeMu sync.Mutex
	bridges  atomic.Pointer[[]outbound[S, E]]

	// Liveness observers (inbound bridges watching this dispatcher as
	// their target). Copy-on-write for the same reason.
	livenessMu     sync.Mutex
	nextLivenessID uint64
	livenessSubs   atomic.Pointer[[]livenessEntry]

	// Bridges created with this dispatcher as source, for RemoveAll.
	ownedMu sync.Mutex
	owned   []disposable

	allowMultiple atomic.Bool
}

// New creates an empty dispatcher.
func New[S, E any](opts ...Option) *Dispatcher[S, E] {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher[S, E]{
		name:             cfg.name,
		logger:           cfg.logger,
		pool:             cfg.pool,
		spans:            cfg.spans,
		metrics:          cfg.metrics,
		syncHandlers:     newHandlerSet[S, E](KindSync),
		asyncHandlers:    newHandlerSet[S, E](KindAsync),
		parallelHandlers: newHandlerSet[S, E](KindParallel),
	}
	d.allowMultiple.Store(cfg.allowMultiple)
	return d
}

// OnSync subscribes a handler that runs on the raising goroutine during the
// synchronous phase, in registration order.
func (d *Dispatcher[S, E]) OnSync(h Handler[S, E]) (*Subscription, error) {
	return d.subscribe(d.syncHandlers, h)
}

// OnAsync subscribes a handler that runs during the sequential-async phase:
// after every sync handler in the graph, one handler completing before the
// next starts.
func (d *Dispatcher[S, E]) OnAsync(h Handler[S, E]) (*Subscription, error) {
	return d.subscribe(d.asyncHandlers, h)
}

// OnParallel subscribes a handler that is started on the worker pool the
// moment this dispatcher is reached during a raise and joined before the
// raise completes. Parallel handlers have no ordering guarantee relative to
// each other.
func (d *Dispatcher[S, E]) OnParallel(h Handler[S, E]) (*Subscription, error) {
	return d.subscribe(d.parallelHandlers, h)
}

func (d *Dispatcher[S, E]) subscribe(set *handlerSet[S, E], h Handler[S, E]) (*Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	id, becameNonEmpty := set.add(h)
	if becameNonEmpty {
		d.notifyLiveness()
	}
	return &Subscription{remove: func() {
		if set.remove(id) {
			d.notifyLiveness()
		}
	}}, nil
}

// HasHandlers reports whether anything downstream cares about a raise: true
// iff any handler list is non-empty or any outbound bridge is registered.
// Because bridges register on their source only while their own target has
// handlers, this answers "does anything anywhere in the reachable graph
// consume events from here" without walking the graph. Callers may use it
// to skip constructing expensive event values entirely.
func (d *Dispatcher[S, E]) HasHandlers() bool {
	return !d.syncHandlers.empty() ||
		!d.asyncHandlers.empty() ||
		!d.parallelHandlers.empty() ||
		len(d.outboundSnapshot()) > 0
}

// AllowMultipleEvents reports whether this dispatcher accepts more than one
// bridged delivery within a single raise. Default false: a raise touches
// each dispatcher at most once, which is what makes cyclic bridge graphs
// safe.
func (d *Dispatcher[S, E]) AllowMultipleEvents() bool {
	return d.allowMultiple.Load()
}

// SetAllowMultipleEvents opts this dispatcher in or out of receiving
// multiple bridged deliveries per raise.
func (d *Dispatcher[S, E]) SetAllowMultipleEvents(allow bool) {
	d.allowMultiple.Store(allow)
}

// RemoveAll clears every handler list and disposes every bridge created
// with this dispatcher as source.
func (d *Dispatcher[S, E]) RemoveAll() {
	clearedSync := d.syncHandlers.clear()
	clearedAsync := d.asyncHandlers.clear()
	clearedParallel := d.parallelHandlers.clear()
	if clearedSync || clearedAsync || clearedParallel {
		d.notifyLiveness()
	}

	d.ownedMu.Lock()
	owned := d.owned
	d.owned = nil
	d.ownedMu.Unlock()
	for _, b := range owned {
		b.Dispose()
	}
}

// Events returns the read-only registration façade for this dispatcher:
// subscribe operations and bridge creation, but no Raise.
func (d *Dispatcher[S, E]) Events() *Stream[S, E] {
	return &Stream[S, E]{d: d}
}

func (d *Dispatcher[S, E]) loggerOrDefault() *slog.Logger {
	if d.logger != nil {
		return d.logger
	}
	return slog.Default()
}

// Bridge registry. registerBridge and unregisterBridge are called by a
// bridge's own evaluation, never the other way around; neither holds any
// bridge lock when it fires liveness observers.

func (d *Dispatcher[S, E]) outboundSnapshot() []outbound[S, E] {
	if p := d.bridges.Load(); p != nil {
		return *p
	}
	return nil
}

func (d *Dispatcher[S, E]) registerBridge(b outbound[S, E]) {
	d.bridgeMu.Lock()
	old := d.outboundSnapshot()
	for _, existing := range old {
		if existing == b {
			d.bridgeMu.Unlock()
			return
		}
	}
	next := make([]outbound[S, E], len(old), len(old)+1)
	copy(next, old)
	next = append(next, b)
	d.bridges.Store(&next)
	d.bridgeMu.Unlock()

	if len(old) == 0 {
		d.notifyLiveness()
	}
}

func (d *Dispatcher[S, E]) unregisterBridge(b outbound[S, E]) {
	d.bridgeMu.Lock()
	old := d.outboundSnapshot()
	next := make([]outbound[S, E], 0, len(old))
	found := false
	for _, existing := range old {
		if existing == b {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if !found {
		d.bridgeMu.Unlock()
		return
	}
	d.bridges.Store(&next)
	d.bridgeMu.Unlock()

	if len(next) == 0 {
		d.notifyLiveness()
	}
}

func (d *Dispatcher[S, E]) adoptBridge(b disposable) {
	d.ownedMu.Lock()
	d.owned = append(d.owned, b)
	d.ownedMu.Unlock()
}

// Liveness fan-out. Observers are invoked synchronously so HasHandlers
// changes propagate through arbitrarily long bridge chains at
// subscribe/unsubscribe time rather than being recomputed at raise time.

func (d *Dispatcher[S, E]) subscribeLiveness(fn func()) uint64 {
	d.livenessMu.Lock()
	defer d.livenessMu.Unlock()

	d.nextLivenessID++
	id := d.nextLivenessID

	var old []livenessEntry
	if p := d.livenessSubs.Load(); p != nil {
		old = *p
	}
	next := make([]livenessEntry, len(old), len(old)+1)
	copy(next, old)
	next = append(next, livenessEntry{id: id, fn: fn})
	d.livenessSubs.Store(&next)

	return id
}

func (d *Dispatcher[S, E]) unsubscribeLiveness(id uint64) {
	d.livenessMu.Lock()
	defer d.livenessMu.Unlock()

	p := d.livenessSubs.Load()
	if p == nil {
		return
	}
	next := make([]livenessEntry, 0, len(*p))
	for _, e := range *p {
		if e.id == id {
			continue
		}
		next = append(next, e)
	}
	d.livenessSubs.Store(&next)
}

// notifyLiveness invokes every liveness observer. No lock is held during
// the callbacks: an observer may re-enter subscribe/unsubscribe or trigger
// further liveness notifications on other dispatchers (bridge chains and
// cycles do exactly that).
func (d *Dispatcher[S, E]) notifyLiveness() {
	p := d.livenessSubs.Load()
	if p == nil {
		return
	}
	for _, e := range *p {
		e.fn()
	}
}
