// Package postgres binds the instrumentation core to a pgxpool.Pool.
//
// Usage:
//
//	dbpool "github.com/kairos-labs/dbtrace-go/pool"
//	"github.com/kairos-labs/dbtrace-go/pool/adapters/postgres"
//
//	p, err := postgres.Open(ctx, "postgres://app@db.internal:5432/orders",
//	    dbpool.WithName("orders-db"),
//	)
package postgres

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"

	dbpool "github.com/kairos-labs/dbtrace-go/pool"
)

// Compile-time interface checks.
var (
	_ dbpool.Engine     = (*engine)(nil)
	_ dbpool.EngineConn = (*conn)(nil)
	_ dbpool.EngineTx   = (*tx)(nil)
	_ dbpool.EngineRows = (*rows)(nil)
)

// Open creates a pgx pool for connString and wraps it.
func Open(ctx context.Context, connString string, opts ...dbpool.Option) (*dbpool.Pool, error) {
	p, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return Wrap(p, opts...), nil
}

// Wrap instruments an existing pgx pool. Host, port, and database are
// derived from the pool's configuration; options override them.
func Wrap(p *pgxpool.Pool, opts ...dbpool.Option) *dbpool.Pool {
	return dbpool.Wrap(NewEngine(p), opts...)
}

// NewEngine adapts a pgx pool to the engine interface without wrapping
// it. Most callers want Wrap or Open instead.
func NewEngine(p *pgxpool.Pool) dbpool.Engine {
	return &engine{pool: p}
}

type engine struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

func (e *engine) Backend() dbpool.Backend {
	return dbpool.BackendPostgres
}

func (e *engine) Describe() dbpool.Target {
	cfg := e.pool.Config()
	if cfg == nil || cfg.ConnConfig == nil {
		return dbpool.Target{}
	}
	return dbpool.Target{
		Host:     cfg.ConnConfig.Host,
		Port:     int(cfg.ConnConfig.Port),
		Database: cfg.ConnConfig.Database,
	}
}

func (e *engine) Acquire(ctx context.Context) (dbpool.EngineConn, error) {
	c, err := e.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, puddle.ErrClosedPool) {
			return nil, dbpool.ErrPoolClosed
		}
		return nil, err
	}
	return &conn{conn: c}, nil
}

// TryAcquire hands out one of the pool's idle connections. It never
// opens a new connection, so a pool that is below its limit but has
// nothing idle still reports unavailable.
func (e *engine) TryAcquire(ctx context.Context) (dbpool.EngineConn, bool, error) {
	if e.closed.Load() {
		return nil, false, dbpool.ErrPoolClosed
	}

	idle := e.pool.AcquireAllIdle(ctx)
	if len(idle) == 0 {
		return nil, false, nil
	}
	for _, extra := range idle[1:] {
		extra.Release()
	}
	return &conn{conn: idle[0]}, true, nil
}

func (e *engine) Begin(ctx context.Context) (dbpool.EngineTx, error) {
	t, err := e.pool.Begin(ctx)
	if err != nil {
		if errors.Is(err, puddle.ErrClosedPool) {
			return nil, dbpool.ErrPoolClosed
		}
		return nil, err
	}
	return &tx{tx: t}, nil
}

func (e *engine) Close(_ context.Context) error {
	if e.closed.CompareAndSwap(false, true) {
		e.pool.Close()
	}
	return nil
}

func (e *engine) Size() int {
	return int(e.pool.Stat().TotalConns())
}

func (e *engine) NumIdle() int {
	return int(e.pool.Stat().IdleConns())
}

func (e *engine) IsClosed() bool {
	return e.closed.Load()
}

type conn struct {
	conn *pgxpool.Conn
}

func (c *conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *conn) Query(ctx context.Context, sql string, args ...any) (dbpool.EngineRows, error) {
	r, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &rows{rows: r}, nil
}

func (c *conn) Begin(ctx context.Context) (dbpool.EngineTx, error) {
	t, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &tx{tx: t}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *conn) Release() error {
	c.conn.Release()
	return nil
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *tx) Query(ctx context.Context, sql string, args ...any) (dbpool.EngineRows, error) {
	r, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &rows{rows: r}, nil
}

func (t *tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

type rows struct {
	rows pgx.Rows
}

func (r *rows) Next() bool {
	return r.rows.Next()
}

func (r *rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *rows) Err() error {
	return r.rows.Err()
}

func (r *rows) Close() error {
	r.rows.Close()
	return nil
}
