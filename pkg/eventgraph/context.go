package eventgraph

import (
	"context"
	"log/slog"
)

// raiseScope is the per-raise correlation context. One scope is created per
// raise and shared by every handler the raise reaches, including parallel
// handlers and handlers on bridged targets, so logs across the whole graph
// correlate on the same raise_id.
type raiseScope struct {
	id     string
	logger *slog.Logger
}

type raiseScopeKey struct{}

func withRaiseScope(ctx context.Context, scope *raiseScope) context.Context {
	return context.WithValue(ctx, raiseScopeKey{}, scope)
}

func scopeFrom(ctx context.Context) *raiseScope {
	scope, _ := ctx.Value(raiseScopeKey{}).(*raiseScope)
	return scope
}

// RaiseID returns the correlation ID of the raise that invoked the current
// handler, or "" when ctx does not belong to a raise.
func RaiseID(ctx context.Context) string {
	if scope := scopeFrom(ctx); scope != nil {
		return scope.id
	}
	return ""
}

// LoggerFrom returns the raise-scoped logger, enriched with the dispatcher
// name and raise_id. Never returns nil - defaults to slog.Default() outside
// a raise.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if scope := scopeFrom(ctx); scope != nil && scope.logger != nil {
		return scope.logger
	}
	return slog.Default()
}
