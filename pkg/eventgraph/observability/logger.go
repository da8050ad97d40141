// Package observability provides structured logging, metrics, and
// distributed tracing for eventgraph.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds raise context to a logger.
// Returns a new logger with dispatcher and raise_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "orders", "8f14e45f")
//	enriched.Info("delivering") // includes dispatcher, raise_id
func EnrichLogger(logger *slog.Logger, dispatcher, raiseID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("dispatcher", dispatcher),
		slog.String("raise_id", raiseID),
	)
}

// LogRaiseStart logs the start of a raise.
func LogRaiseStart(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Debug("raise starting")
}

// LogRaiseComplete logs successful raise completion.
func LogRaiseComplete(logger *slog.Logger, durationMs float64, deliveries int) {
	if logger == nil {
		return
	}
	logger.Debug("raise completed",
		slog.Float64("duration_ms", durationMs),
		slog.Int("bridge_deliveries", deliveries),
	)
}

// LogRaiseFailed logs a raise failure. Used by SafeRaise, which swallows
// the error after logging it; plain Raise propagates instead of logging.
func LogRaiseFailed(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("raise failed",
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
