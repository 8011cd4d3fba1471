// Package sqlite binds the instrumentation core to a database/sql pool
// backed by the modernc.org/sqlite driver.
//
// Usage:
//
//	dbpool "github.com/kairos-labs/dbtrace-go/pool"
//	"github.com/kairos-labs/dbtrace-go/pool/adapters/sqlite"
//
//	p, err := sqlite.Open("file:app.db", dbpool.WithName("app-db"))
package sqlite

import (
	"context"
	"database/sql"
	"sync/atomic"

	_ "modernc.org/sqlite"

	dbpool "github.com/kairos-labs/dbtrace-go/pool"
)

// Compile-time interface checks.
var (
	_ dbpool.Engine     = (*engine)(nil)
	_ dbpool.EngineConn = (*conn)(nil)
	_ dbpool.EngineTx   = (*tx)(nil)
	_ dbpool.EngineRows = (*sql.Rows)(nil)
)

// Open opens a SQLite database at path (":memory:" for in-memory) and
// wraps it.
func Open(path string, opts ...dbpool.Option) (*dbpool.Pool, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return Wrap(db, path, opts...), nil
}

// Wrap instruments an existing database/sql pool. The file path plays
// the host role in span attributes, mirroring how file-backed databases
// are identified; pass "" to omit it.
func Wrap(db *sql.DB, path string, opts ...dbpool.Option) *dbpool.Pool {
	return dbpool.Wrap(NewEngine(db, path), opts...)
}

// NewEngine adapts a database/sql pool to the engine interface without
// wrapping it. Most callers want Wrap or Open instead.
func NewEngine(db *sql.DB, path string) dbpool.Engine {
	return &engine{db: db, path: path}
}

type engine struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

func (e *engine) Backend() dbpool.Backend {
	return dbpool.BackendSQLite
}

func (e *engine) Describe() dbpool.Target {
	return dbpool.Target{Host: e.path}
}

func (e *engine) Acquire(ctx context.Context) (dbpool.EngineConn, error) {
	if e.closed.Load() {
		return nil, dbpool.ErrPoolClosed
	}
	c, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{conn: c}, nil
}

// TryAcquire is best-effort: database/sql exposes no non-blocking
// checkout, so idle-count zero is treated as unavailable. A connection
// grabbed between the check and the checkout is handed out normally.
func (e *engine) TryAcquire(ctx context.Context) (dbpool.EngineConn, bool, error) {
	if e.closed.Load() {
		return nil, false, dbpool.ErrPoolClosed
	}
	if e.db.Stats().Idle == 0 {
		return nil, false, nil
	}
	c, err := e.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	return &conn{conn: c}, true, nil
}

func (e *engine) Begin(ctx context.Context) (dbpool.EngineTx, error) {
	if e.closed.Load() {
		return nil, dbpool.ErrPoolClosed
	}
	c, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	t, err := c.BeginTx(ctx, nil)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	// The pinned connection goes back to the pool when the transaction
	// finishes.
	return &tx{tx: t, conn: c}, nil
}

func (e *engine) Close(_ context.Context) error {
	e.closed.Store(true)
	return e.db.Close()
}

func (e *engine) Size() int {
	return e.db.Stats().OpenConnections
}

func (e *engine) NumIdle() int {
	return e.db.Stats().Idle
}

func (e *engine) IsClosed() bool {
	return e.closed.Load()
}

type conn struct {
	conn *sql.Conn
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Driver cannot report the count; the statement itself succeeded.
		return 0, nil
	}
	return affected, nil
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (dbpool.EngineRows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *conn) Begin(ctx context.Context) (dbpool.EngineTx, error) {
	t, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{tx: t}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *conn) Release() error {
	return c.conn.Close()
}

type tx struct {
	tx *sql.Tx
	// conn is set for pool-level transactions, which pin a connection
	// for their duration.
	conn *sql.Conn
}

func (t *tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (t *tx) Query(ctx context.Context, query string, args ...any) (dbpool.EngineRows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *tx) Commit(_ context.Context) error {
	err := t.tx.Commit()
	t.release()
	return err
}

func (t *tx) Rollback(_ context.Context) error {
	err := t.tx.Rollback()
	t.release()
	return err
}

func (t *tx) release() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}
