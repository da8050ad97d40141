package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records dispatch metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRaise records a completed raise with its outcome and duration.
	RecordRaise(ctx context.Context, dispatcher string, success bool, duration time.Duration)

	// RecordBridgeDeliveries records how many bridged targets one raise
	// reached.
	RecordBridgeDeliveries(ctx context.Context, dispatcher string, count int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	raises           metric.Int64Counter
	raiseLatency     metric.Float64Histogram
	bridgeDeliveries metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventgraph")

	raises, err := meter.Int64Counter("eventgraph.raises",
		metric.WithDescription("Number of raises"),
	)
	if err != nil {
		return nil, err
	}

	raiseLatency, err := meter.Float64Histogram("eventgraph.raise.duration",
		metric.WithDescription("Raise duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	bridgeDeliveries, err := meter.Int64Counter("eventgraph.bridge.deliveries",
		metric.WithDescription("Number of bridged deliveries per raise"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		raises:           raises,
		raiseLatency:     raiseLatency,
		bridgeDeliveries: bridgeDeliveries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder if instrument creation fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		return NoopMetrics{}
	}
	return m
}

// RecordRaise records a completed raise.
func (m *otelMetrics) RecordRaise(ctx context.Context, dispatcher string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("dispatcher", dispatcher),
		attribute.Bool("success", success),
	)
	m.raises.Add(ctx, 1, attrs)
	m.raiseLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordBridgeDeliveries records the bridged fan-out of one raise.
func (m *otelMetrics) RecordBridgeDeliveries(ctx context.Context, dispatcher string, count int) {
	if count == 0 {
		return
	}
	m.bridgeDeliveries.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("dispatcher", dispatcher),
	))
}
