package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Querier is the executor surface shared by Conn and Tx: queries routed
// through either are traced with the same full-weight span policy.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)
}

// Compile-time interface checks.
var (
	_ Querier = (*Conn)(nil)
	_ Querier = (*Tx)(nil)
)

// Conn is a single checked-out connection. It shares the owning pool's
// attributes and configuration by reference; its lifetime must not
// exceed the pool's.
//
// Operations on one Conn are strictly sequential: a Conn must not be
// used from multiple goroutines at once.
type Conn struct {
	conn EngineConn
	cfg  *config

	mu sync.Mutex
	tx *Tx // transaction begun on this connection and still open, if any
}

// Exec runs a statement that returns no rows and reports the number of
// rows affected.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	start := time.Now()
	ctx, span := c.cfg.startQuerySpan(ctx, spanExec, sql)
	defer span.End()

	affected, err := c.conn.Exec(ctx, sql, args...)

	c.cfg.Metrics.recordOpDuration(ctx, time.Since(start), extractOperation(sql), c.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, c.cfg.RecordErrorDetail)
		return 0, err
	}

	span.SetAttributes(attribute.Int64(attrAffectedRows, affected))
	return affected, nil
}

// Query runs a statement and returns its rows. The span stays open while
// the caller iterates and is closed by Rows.Close, which records the
// number of rows the caller consumed.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	start := time.Now()
	ctx, span := c.cfg.startQuerySpan(ctx, spanQuery, sql)

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		c.cfg.Metrics.recordOpDuration(ctx, time.Since(start), extractOperation(sql), c.cfg.baseAttributes(), err)
		recordSpanError(span, err, c.cfg.RecordErrorDetail)
		span.End()
		return nil, err
	}

	return newRows(ctx, rows, span, c.cfg, extractOperation(sql), start), nil
}

// Ping checks that the connection is still alive.
func (c *Conn) Ping(ctx context.Context) error {
	start := time.Now()
	ctx, span := c.cfg.startOpSpan(ctx, spanConnPing)
	defer span.End()

	err := c.conn.Ping(ctx)

	c.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "PING", c.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, c.cfg.RecordErrorDetail)
	}

	return err
}

// Begin starts a transaction on this connection.
func (c *Conn) Begin(ctx context.Context) (*Tx, error) {
	start := time.Now()
	ctx, span := c.cfg.startOpSpan(ctx, spanTxBegin)
	defer span.End()

	etx, err := c.conn.Begin(ctx)

	c.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "BEGIN", c.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, c.cfg.RecordErrorDetail)
		return nil, err
	}

	tx := &Tx{tx: etx, cfg: c.cfg, detach: c.clearTx}

	c.mu.Lock()
	c.tx = tx
	c.mu.Unlock()

	return tx, nil
}

// Release returns the connection to the pool. The return itself is not
// spanned; only acquisition is.
//
// If a transaction begun on this connection is still open it is rolled
// back first, through the same traced path as an explicit Rollback. A
// rollback failure here is best-effort cleanup: it is logged, never
// returned.
func (c *Conn) Release() error {
	c.mu.Lock()
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()

	if tx != nil {
		if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, ErrTxClosed) {
			c.cfg.Logger.Warn().Err(err).Msg("implicit rollback on connection release failed")
		}
	}

	return c.conn.Release()
}

func (c *Conn) clearTx() {
	c.mu.Lock()
	c.tx = nil
	c.mu.Unlock()
}
