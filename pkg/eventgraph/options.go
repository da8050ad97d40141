package eventgraph

import (
	"log/slog"
	"os"

	"github.com/alitto/pond"

	"github.com/randalmurphal/eventgraph/pkg/eventgraph/config"
	"github.com/randalmurphal/eventgraph/pkg/eventgraph/observability"
)

// dispatcherConfig holds construction-time settings for a dispatcher.
type dispatcherConfig struct {
	name          string
	logger        *slog.Logger
	pool          *pond.WorkerPool
	spans         observability.SpanManager
	metrics       observability.MetricsRecorder
	allowMultiple bool
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		name:    "dispatcher",
		spans:   observability.NoopSpanManager{},
		metrics: observability.NoopMetrics{},
	}
}

// Option configures dispatcher construction.
type Option func(*dispatcherConfig)

// WithName sets the dispatcher name used in logs, spans, and metrics.
// Default: "dispatcher".
func WithName(name string) Option {
	return func(cfg *dispatcherConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger sets the base logger. Raise-scoped loggers are derived from it
// with dispatcher and raise_id fields. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *dispatcherConfig) {
		cfg.logger = logger
	}
}

// WithAllowMultipleEvents sets the initial AllowMultipleEvents flag.
// Default: false.
func WithAllowMultipleEvents(allow bool) Option {
	return func(cfg *dispatcherConfig) {
		cfg.allowMultiple = allow
	}
}

// WithParallelPool runs this dispatcher's parallel handlers on the given
// pool instead of the shared process-wide one. Use it to bound the
// concurrency of one noisy dispatcher independently of the rest.
func WithParallelPool(pool *pond.WorkerPool) Option {
	return func(cfg *dispatcherConfig) {
		cfg.pool = pool
	}
}

// WithTracing enables OpenTelemetry spans for every raise. The span manager
// uses the global OTel tracer provider; configure the provider before
// raising.
func WithTracing() Option {
	return func(cfg *dispatcherConfig) {
		cfg.spans = observability.NewSpanManager()
	}
}

// WithMetrics enables OpenTelemetry metrics for raises and bridge
// deliveries, using the global OTel meter provider.
func WithMetrics() Option {
	return func(cfg *dispatcherConfig) {
		cfg.metrics = observability.NewMetricsRecorder()
	}
}

// FromConfig builds dispatcher options from a loaded configuration.
//
// Recognized keys:
//   - allow_multiple_events (bool)
//   - parallel_workers (int) with parallel_queue_size (int)
//   - tracing (bool), metrics (bool)
//   - log_level ("debug", "info", "warn", "error")
func FromConfig(cfg config.Config) []Option {
	var opts []Option

	if cfg.Bool("allow_multiple_events", false) {
		opts = append(opts, WithAllowMultipleEvents(true))
	}
	if workers := cfg.Int("parallel_workers", 0); workers > 0 {
		queue := cfg.Int("parallel_queue_size", defaultPoolQueue)
		opts = append(opts, WithParallelPool(pond.New(workers, queue)))
	}
	if cfg.Bool("tracing", false) {
		opts = append(opts, WithTracing())
	}
	if cfg.Bool("metrics", false) {
		opts = append(opts, WithMetrics())
	}
	if level := cfg.String("log_level", ""); level != "" {
		opts = append(opts, WithLogger(newLeveledLogger(level)))
	}

	return opts
}

func newLeveledLogger(level string) *slog.Logger {
	var lvl slog.Level
	// Unknown strings fall back to info, the slog zero level.
	_ = lvl.UnmarshalText([]byte(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
