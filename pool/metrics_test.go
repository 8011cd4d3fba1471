package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordOpDurationNilSafe(t *testing.T) {
	t.Run("given nil metrics, then recording is a no-op", func(t *testing.T) {
		var m *metrics

		assert.NotPanics(t, func() {
			m.recordOpDuration(context.Background(), time.Millisecond, "SELECT", nil, nil)
		})
	})

	t.Run("given an uninitialized instrument, then recording is a no-op", func(t *testing.T) {
		m := &metrics{}

		assert.NotPanics(t, func() {
			m.recordOpDuration(context.Background(), time.Millisecond, "SELECT", nil, nil)
		})
	})
}

// collectedMetrics runs one collection cycle and indexes the result by
// instrument name.
func collectedMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestOperationDurationHistogram(t *testing.T) {
	t.Run("given wrapped operations, then durations land in the histogram", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

		engine := newFakeEngine()
		p := Wrap(engine, WithMeterProvider(mp))

		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		_, err = conn.Exec(context.Background(), "UPDATE users SET active = true")
		require.NoError(t, err)

		collected := collectedMetrics(t, reader)

		m, ok := collected["db.client.operation.duration"]
		require.True(t, ok, "histogram should be collected")

		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "instrument should be a float64 histogram")

		// One point per attribute set: ACQUIRE and UPDATE.
		var total uint64
		for _, dp := range hist.DataPoints {
			total += dp.Count
		}
		assert.Equal(t, uint64(2), total)
	})
}

func TestPoolGauges(t *testing.T) {
	t.Run("given a wrapped engine, then collection observes its counters", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

		engine := newFakeEngine()
		engine.idle = 4
		Wrap(engine, WithMeterProvider(mp))

		collected := collectedMetrics(t, reader)

		open, ok := collected["db.client.connections.open"]
		require.True(t, ok, "open gauge should be collected")
		openData, ok := open.Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, openData.DataPoints, 1)
		assert.Equal(t, int64(4), openData.DataPoints[0].Value)

		idle, ok := collected["db.client.connections.idle"]
		require.True(t, ok, "idle gauge should be collected")
		idleData, ok := idle.Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, idleData.DataPoints, 1)
		assert.Equal(t, int64(4), idleData.DataPoints[0].Value)
	})
}
