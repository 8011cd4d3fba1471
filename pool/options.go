package pool

import (
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	// This identifies the library in traces and metrics.
	scope = "github.com/kairos-labs/dbtrace-go/pool"
)

// config holds the frozen configuration for one wrapped pool. It is
// built once in Wrap and shared read-only by every connection,
// transaction, and row set derived from the pool.
type config struct {
	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	// Tracer is the tracer instance created from TracerProvider.
	Tracer trace.Tracer

	// Meter is the meter instance created from MeterProvider.
	Meter metric.Meter

	// Metrics holds the metric instruments.
	Metrics *metrics

	// Logger receives warnings from best-effort cleanup paths, such as a
	// failed implicit rollback during Conn.Release. Defaults to a no-op.
	Logger zerolog.Logger

	// Target describes the database. Seeded from Engine.Describe, then
	// overridden field by field through options.
	Target Target

	// Backend identifies the database system (db.system.name attribute).
	Backend Backend

	// RecordQueryText controls whether raw SQL text is attached to
	// query spans. Enabled by default.
	RecordQueryText bool

	// RecordErrorDetail controls whether error messages are attached to
	// failed spans. The error kind and backend status code are recorded
	// regardless. Enabled by default.
	RecordErrorDetail bool
}

// newConfig seeds a config from the engine's self-description and
// applies options. Options win over derived values.
func newConfig(engine Engine, opts ...Option) *config {
	cfg := &config{
		TracerProvider:    otel.GetTracerProvider(),
		MeterProvider:     otel.GetMeterProvider(),
		Logger:            zerolog.Nop(),
		Target:            engine.Describe(),
		Backend:           engine.Backend(),
		RecordQueryText:   true,
		RecordErrorDetail: true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// If no provider is configured globally these are no-op
	// implementations: no errors, just no telemetry collected.
	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// Option configures the instrumentation.
type Option func(*config)

// WithTracerProvider sets a custom tracer provider.
// If not called, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.MeterProvider = mp
	}
}

// WithLogger sets the logger used for best-effort cleanup warnings.
// If not called, warnings are discarded.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = logger
	}
}

// WithName sets a logical name for the pool, recorded as the
// peer.service attribute on every span. Useful when one service talks to
// several databases.
//
// Example:
//
//	p := dbpool.Wrap(engine, dbpool.WithName("orders-db"))
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.Target.Name = name
	}
}

// WithHost overrides the server host derived from the engine
// (net.peer.name attribute).
func WithHost(host string) Option {
	return func(cfg *config) {
		cfg.Target.Host = host
	}
}

// WithPort overrides the server port derived from the engine
// (net.peer.port attribute).
func WithPort(port int) Option {
	return func(cfg *config) {
		cfg.Target.Port = port
	}
}

// WithDatabase overrides the database name derived from the engine
// (db.name attribute).
func WithDatabase(database string) Option {
	return func(cfg *config) {
		cfg.Target.Database = database
	}
}

// WithQueryTextRecording enables or disables recording of SQL query text
// in spans.
//
// When disabled, the db.query.text attribute is never attached. This can
// be useful in environments where queries may contain sensitive data that
// should not flow to the observability backend.
//
// Enabled by default.
func WithQueryTextRecording(enabled bool) Option {
	return func(cfg *config) {
		cfg.RecordQueryText = enabled
	}
}

// WithErrorDetailRecording enables or disables recording of error
// messages in spans.
//
// When disabled, failed spans record only the error kind and the backend
// status code, omitting the message. This can be useful when error
// messages might contain sensitive information such as connection strings
// or internal database state.
//
// Enabled by default.
func WithErrorDetailRecording(enabled bool) Option {
	return func(cfg *config) {
		cfg.RecordErrorDetail = enabled
	}
}
