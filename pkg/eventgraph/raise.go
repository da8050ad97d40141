package eventgraph

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventgraph/pkg/eventgraph/observability"
)

// delivery is one queued bridge delivery discovered during traversal. It
// caches the converted value, so a bridge's converter runs at most once per
// raise no matter how many handler kinds the target has.
type delivery interface {
	expand(origin node, visited map[node]struct{}) []delivery
	collectParallel(ctx context.Context, run *raiseRun)
	raiseSync(ctx context.Context) error
	raiseSequential(ctx context.Context) error
}

// bridgeSender carries one converted value to one target dispatcher.
type bridgeSender[S, T any] struct {
	target *Dispatcher[S, T]
	sender S
	value  T
}

// expand applies the seeding step at this delivery's target, using the
// converted value as the new current event. The origin stays the raise's
// original dispatcher: onlyFromSource is evaluated against it, not against
// intermediate targets.
func (bs *bridgeSender[S, T]) expand(origin node, visited map[node]struct{}) []delivery {
	var next []delivery
	for _, b := range bs.target.outboundSnapshot() {
		if d := b.prepare(origin, bs.sender, bs.value, visited); d != nil {
			next = append(next, d)
		}
	}
	return next
}

func (bs *bridgeSender[S, T]) collectParallel(ctx context.Context, run *raiseRun) {
	bs.target.parallelHandlers.collectParallel(ctx, bs.sender, bs.value, run)
}

func (bs *bridgeSender[S, T]) raiseSync(ctx context.Context) error {
	return bs.target.syncHandlers.invokeSequential(ctx, bs.sender, bs.value)
}

func (bs *bridgeSender[S, T]) raiseSequential(ctx context.Context) error {
	return bs.target.asyncHandlers.invokeSequential(ctx, bs.sender, bs.value)
}

// raiseRun collects the parallel work of one raise: a task group on the
// worker pool plus the failures of handlers that ran on it.
type raiseRun struct {
	group *pond.TaskGroup

	mu   sync.Mutex
	errs *multierror.Error
}

func newRaiseRun(pool *pond.WorkerPool) *raiseRun {
	return &raiseRun{group: pool.Group()}
}

func (r *raiseRun) submit(task func() error) {
	r.group.Submit(func() {
		if err := task(); err != nil {
			r.mu.Lock()
			r.errs = multierror.Append(r.errs, err)
			r.mu.Unlock()
		}
	})
}

// join waits for every submitted handler and returns their combined
// failures, if any.
func (r *raiseRun) join() error {
	r.group.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs.ErrorOrNil()
}

const defaultPoolQueue = 1024

var (
	sharedPoolOnce sync.Once
	sharedPool     *pond.WorkerPool
)

// sharedParallelPool is the process-wide pool used by dispatchers that were
// not given their own via WithParallelPool.
func sharedParallelPool() *pond.WorkerPool {
	sharedPoolOnce.Do(func() {
		sharedPool = pond.New(4*runtime.GOMAXPROCS(0), defaultPoolQueue)
	})
	return sharedPool
}

func (d *Dispatcher[S, E]) parallelPool() *pond.WorkerPool {
	if d.pool != nil {
		return d.pool
	}
	return sharedParallelPool()
}

// Raise delivers event to every handler reachable from this dispatcher: its
// own three handler lists plus, through registered bridges, the handler
// lists of every reachable target, each converted value computed at most
// once per bridge.
//
// Phase order is a documented contract: sync handlers for every reachable
// dispatcher in breadth-first order, then sequential-async handlers in the
// same order, then a join of all parallel handlers (which were started
// during traversal, before any sync delivery).
//
// The first sync or sequential-async failure stops that phase and is
// returned to the caller; parallel work already started is still joined,
// and its failures are combined into the returned error. Cancellation of
// ctx stops remaining not-yet-started handlers and returns ctx.Err();
// handlers already started are never interrupted.
//
// When HasHandlers() is false, Raise returns immediately without touching
// the event.
func (d *Dispatcher[S, E]) Raise(ctx context.Context, sender S, event E) error {
	_, err := d.dispatch(ctx, sender, event)
	return err
}

// SafeRaise runs the same algorithm as Raise but isolates the caller from
// handler failures: any failure is logged through the raise logger and
// reported as false. A cancelled raise reports false without being logged
// as a failure.
func (d *Dispatcher[S, E]) SafeRaise(ctx context.Context, sender S, event E) bool {
	logger, err := d.dispatch(ctx, sender, event)
	switch {
	case err == nil:
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		observability.LogRaiseFailed(logger, err)
		return false
	}
}

// dispatch wraps one raise with its correlation scope, span, metrics, and
// debug logging, and returns the raise logger for SafeRaise's error report.
func (d *Dispatcher[S, E]) dispatch(ctx context.Context, sender S, event E) (*slog.Logger, error) {
	logger := d.loggerOrDefault()
	if ctx == nil {
		return logger, ErrNilContext
	}
	if !d.HasHandlers() {
		return logger, nil
	}

	raiseID := uuid.NewString()
	logger = observability.EnrichLogger(logger, d.name, raiseID)
	ctx = withRaiseScope(ctx, &raiseScope{id: raiseID, logger: logger})

	ctx, span := d.spans.StartRaiseSpan(ctx, d.name, raiseID)
	observability.LogRaiseStart(logger)
	start := time.Now()

	deliveries, err := d.run(ctx, sender, event)

	duration := time.Since(start)
	d.spans.EndSpanWithError(span, err)
	d.metrics.RecordRaise(ctx, d.name, err == nil, duration)
	d.metrics.RecordBridgeDeliveries(ctx, d.name, deliveries)
	if err == nil {
		observability.LogRaiseComplete(logger, float64(duration.Milliseconds()), deliveries)
	}

	return logger, err
}

// run is the raise coordinator: traversal, the two ordered phases, and the
// parallel join.
func (d *Dispatcher[S, E]) run(ctx context.Context, sender S, event E) (int, error) {
	run := newRaiseRun(d.parallelPool())

	// Breadth-first traversal over registered bridges. visited holds every
	// dispatcher with a queued delivery; the origin is pre-seeded so cycles
	// cannot deliver back to it unless it opted into multiple events.
	// Parallel handlers start the moment their dispatcher is visited, before
	// any sync delivery anywhere.
	visited := map[node]struct{}{node(d): {}}
	var queue []delivery

	d.parallelHandlers.collectParallel(ctx, sender, event, run)
	for _, b := range d.outboundSnapshot() {
		if del := b.prepare(d, sender, event, visited); del != nil {
			del.collectParallel(ctx, run)
			queue = append(queue, del)
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, del := range queue[i].expand(d, visited) {
			del.collectParallel(ctx, run)
			queue = append(queue, del)
		}
	}
	d.spans.AddSpanEvent(ctx, "eventgraph.traversal_complete",
		attribute.Int("deliveries", len(queue)))

	phaseErr := d.runPhases(ctx, sender, event, queue)

	// Parallel handlers already started are always joined, even when a
	// phase failed: leaking them would outlive the raise.
	joinErr := run.join()

	switch {
	case phaseErr != nil && joinErr != nil:
		return len(queue), multierror.Append(phaseErr, joinErr)
	case phaseErr != nil:
		return len(queue), phaseErr
	default:
		return len(queue), joinErr
	}
}

func (d *Dispatcher[S, E]) runPhases(ctx context.Context, sender S, event E, queue []delivery) error {
	// Sync phase: the origin's own handlers first, then each bridged target
	// in breadth-first queue order.
	if err := d.syncHandlers.invokeSequential(ctx, sender, event); err != nil {
		return err
	}
	for _, del := range queue {
		if err := del.raiseSync(ctx); err != nil {
			return err
		}
	}

	// Sequential-async phase starts only after the sync phase finished for
	// every target; each target completes before the next begins.
	if err := d.asyncHandlers.invokeSequential(ctx, sender, event); err != nil {
		return err
	}
	for _, del := range queue {
		if err := del.raiseSequential(ctx); err != nil {
			return err
		}
	}
	return nil
}

// invokeHandler calls one handler with panic recovery. A panicking handler
// is reported as a HandlerPanicError carrying the stack at the panic; a
// returned error is wrapped in a HandlerError with the kind and position.
func invokeHandler[S, E any](ctx context.Context, kind HandlerKind, index int, h Handler[S, E], sender S, event E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanicError{
				Kind:  kind,
				Index: index,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	if callErr := h(ctx, sender, event); callErr != nil {
		return &HandlerError{Kind: kind, Index: index, Err: callErr}
	}
	return nil
}
