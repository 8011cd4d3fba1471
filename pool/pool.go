package pool

import (
	"context"
	"time"
)

// Pool wraps a connection-pooling engine with tracing instrumentation.
// Every pool-level operation is bracketed by a span carrying the pool's
// descriptive attributes; connections and transactions obtained through
// it share the same attributes by reference.
type Pool struct {
	engine Engine
	cfg    *config
}

// Wrap instruments an engine. The descriptive attributes are derived
// once from the engine and can be overridden through options; after Wrap
// returns they never change.
//
// Example:
//
//	p := dbpool.Wrap(engine,
//	    dbpool.WithName("orders-db"),
//	    dbpool.WithQueryTextRecording(false),
//	)
func Wrap(engine Engine, opts ...Option) *Pool {
	cfg := newConfig(engine, opts...)

	if cfg.Metrics != nil {
		// Gauge registration only fails on instrument-name conflicts;
		// operation tracing works without the gauges.
		_ = cfg.Metrics.registerPoolGauges(cfg.Meter, engine, cfg.baseAttributes())
	}

	return &Pool{engine: engine, cfg: cfg}
}

// Acquire checks a connection out of the pool, blocking until one is
// available, ctx is done, or the pool is closed. The span measures
// acquisition latency.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()
	ctx, span := p.cfg.startOpSpan(ctx, spanPoolAcquire)
	defer span.End()

	conn, err := p.engine.Acquire(ctx)

	p.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "ACQUIRE", p.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, p.cfg.RecordErrorDetail)
		return nil, err
	}

	return &Conn{conn: conn, cfg: p.cfg}, nil
}

// TryAcquire checks a connection out of the pool without waiting. When
// no idle connection is available it returns ok=false with a nil error:
// unavailability is a normal outcome, distinct from Acquire failing or
// timing out. The attempt is still spanned.
func (p *Pool) TryAcquire(ctx context.Context) (conn *Conn, ok bool, err error) {
	start := time.Now()
	ctx, span := p.cfg.startOpSpan(ctx, spanPoolAcquire)
	defer span.End()

	ec, ok, err := p.engine.TryAcquire(ctx)

	p.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "ACQUIRE", p.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, p.cfg.RecordErrorDetail)
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return &Conn{conn: ec, cfg: p.cfg}, true, nil
}

// Begin acquires a connection and starts a transaction on it. The
// acquisition latency is absorbed into the single db.transaction.begin
// span rather than spanned separately.
func (p *Pool) Begin(ctx context.Context) (*Tx, error) {
	start := time.Now()
	ctx, span := p.cfg.startOpSpan(ctx, spanTxBegin)
	defer span.End()

	etx, err := p.engine.Begin(ctx)

	p.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "BEGIN", p.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, p.cfg.RecordErrorDetail)
		return nil, err
	}

	return &Tx{tx: etx, cfg: p.cfg}, nil
}

// Close shuts the pool down. Closing an already-closed pool is a no-op
// for the engine but still emits a span. After Close returns, IsClosed
// reports true and Acquire fails fast with ErrPoolClosed.
func (p *Pool) Close(ctx context.Context) error {
	start := time.Now()
	ctx, span := p.cfg.startOpSpan(ctx, spanPoolClose)
	defer span.End()

	err := p.engine.Close(ctx)

	p.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "CLOSE", p.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, p.cfg.RecordErrorDetail)
	}

	return err
}

// Size returns the number of connections currently open in the pool,
// including idle ones. Pure health metric, not spanned.
func (p *Pool) Size() int {
	return p.engine.Size()
}

// NumIdle returns the number of idle connections. Not spanned.
func (p *Pool) NumIdle() int {
	return p.engine.NumIdle()
}

// IsClosed reports whether Close has been called on this pool. Not
// spanned.
func (p *Pool) IsClosed() bool {
	return p.engine.IsClosed()
}

// Engine returns the wrapped engine.
//
// This is the escape hatch for operations this layer does not cover
// (for example bespoke streaming protocols). Operations performed
// directly on the engine are intentionally not traced.
func (p *Pool) Engine() Engine {
	return p.engine
}
