package pool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for wrapped operations.
type metrics struct {
	// Operation latency histogram
	opDuration metric.Float64Histogram

	// Connection pool gauges (set after pool gauges are registered)
	openConnections metric.Int64ObservableGauge
	idleConnections metric.Int64ObservableGauge
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	// Operation duration histogram with recommended buckets for database operations
	m.opDuration, err = meter.Float64Histogram(
		"db.client.operation.duration",
		metric.WithDescription("Duration of database client operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// registerPoolGauges registers connection-accounting gauges fed from the
// engine. Collected lazily when scraped; the engine owns the counters,
// this layer only observes them.
func (m *metrics) registerPoolGauges(
	meter metric.Meter,
	engine Engine,
	attrs []attribute.KeyValue,
) error {
	var err error

	m.openConnections, err = meter.Int64ObservableGauge(
		"db.client.connections.open",
		metric.WithDescription("Number of open connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	m.idleConnections, err = meter.Int64ObservableGauge(
		"db.client.connections.idle",
		metric.WithDescription("Number of idle connections in the pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(m.openConnections, int64(engine.Size()),
				metric.WithAttributes(attrs...))
			o.ObserveInt64(m.idleConnections, int64(engine.NumIdle()),
				metric.WithAttributes(attrs...))
			return nil
		},
		m.openConnections,
		m.idleConnections,
	)

	return err
}

// recordOpDuration records the duration of one wrapped operation.
func (m *metrics) recordOpDuration(
	ctx context.Context,
	duration time.Duration,
	operation string,
	attrs []attribute.KeyValue,
	err error,
) {
	if m == nil || m.opDuration == nil {
		return
	}

	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs, attrs...)

	if operation != "" {
		allAttrs = append(allAttrs, attribute.String(attrDBOperation, operation))
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	allAttrs = append(allAttrs, attribute.String("status", status))

	m.opDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(allAttrs...))
}
