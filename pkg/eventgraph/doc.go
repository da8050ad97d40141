/*
Package eventgraph provides typed in-process event dispatch with bridges.

# Overview

eventgraph is a Go library for publishing one logical event to a mix of
synchronous, sequential-async, and parallel subscribers, plus a dynamic
graph of bridges that republish (optionally filtered and type-converted)
events to other dispatchers.

The library is built around three ideas:

  - Liveness propagates at subscribe time, not raise time. A publisher with
    no reachable consumer anywhere in the bridge graph observes
    HasHandlers() == false and can skip constructing the event entirely.
  - One raise traverses the whole bridge graph breadth-first, delivering to
    each dispatcher at most once (cycles are safe by default) with a
    documented phase order: sync for every level, then sequential-async for
    every level, then a join of all parallel work.
  - Handlers and bridges may be added or removed from other goroutines
    while a raise is in flight; an in-flight raise works on snapshots.

# Basic Usage

Create a dispatcher, subscribe, raise:

	type OrderPlaced struct {
	    ID    string
	    Total int
	}

	orders := eventgraph.New[eventgraph.None, OrderPlaced]()

	sub, _ := orders.OnSync(func(ctx context.Context, _ eventgraph.None, e OrderPlaced) error {
	    fmt.Println("placed:", e.ID)
	    return nil
	})
	defer sub.Unsubscribe()

	if orders.HasHandlers() {
	    _ = orders.Raise(ctx, eventgraph.None{}, OrderPlaced{ID: "ord-1", Total: 42})
	}

# Bridges

A bridge republishes events from one dispatcher to another, optionally
filtering and converting them. Bridges register themselves on their source
only while the target has consumers, so an unconsumed chain costs nothing:

	audits := eventgraph.New[eventgraph.None, AuditRecord]()
	bridge, err := eventgraph.NewBridge(orders, audits, func(e OrderPlaced) AuditRecord {
	    return AuditRecord{Kind: "order", Ref: e.ID}
	})
	if err != nil {
	    log.Fatal(err)
	}
	defer bridge.Dispose()

# Handler Kinds

Sync handlers run on the raising goroutine, in registration order, before
anything else. Sequential-async handlers run after every sync handler in
the graph, one completing before the next starts. Parallel handlers are
started the moment their dispatcher is reached during traversal and joined
before Raise returns.

# Observability

Logging uses log/slog; tracing and metrics use OpenTelemetry and are
opt-in via WithTracing and WithMetrics. Every raise carries a correlation
ID retrievable inside handlers with RaiseID(ctx), and a logger enriched
with it via LoggerFrom(ctx).
*/
package eventgraph
