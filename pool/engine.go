package pool

import (
	"context"
	"errors"
)

// Backend identifies the database system behind an engine. The set is
// closed: adapters in this module cover every supported value, and the
// value only feeds the db.system.name span attribute.
type Backend int

const (
	// BackendUnknown is used when the engine cannot name its backend.
	BackendUnknown Backend = iota
	// BackendPostgres is the PostgreSQL backend (adapters/postgres).
	BackendPostgres
	// BackendSQLite is the SQLite backend (adapters/sqlite).
	BackendSQLite
)

// String returns the OpenTelemetry db.system.name value for the backend.
func (b Backend) String() string {
	switch b {
	case BackendPostgres:
		return "postgresql"
	case BackendSQLite:
		return "sqlite"
	default:
		return ""
	}
}

// Target describes the database an engine talks to. It feeds the
// descriptive span attributes shared by every span a Pool emits.
// Zero-valued fields are omitted from spans rather than recorded empty.
type Target struct {
	// Name is a logical name for the pool (peer.service attribute).
	Name string
	// Host is the server hostname, or the database file path for
	// file-backed engines (net.peer.name attribute).
	Host string
	// Port is the server port (net.peer.port attribute). Zero means unset.
	Port int
	// Database is the database name (db.name attribute).
	Database string
}

// Sentinel errors shared by the core and the backend adapters.
var (
	// ErrPoolClosed is returned by acquisition attempts after the pool
	// has been closed.
	ErrPoolClosed = errors.New("dbtrace: pool is closed")

	// ErrTxClosed is returned by any operation on a transaction that has
	// already been committed or rolled back.
	ErrTxClosed = errors.New("dbtrace: transaction has already been committed or rolled back")
)

// Engine is the connection-pooling and query-execution engine wrapped by
// Pool. Adapters under adapters/ bind it to a concrete backend; the core
// never reimplements pooling, health checks, or SQL execution.
//
// Describe is consulted once, when the engine is wrapped. It must not
// fail: fields the engine cannot derive are simply left zero.
type Engine interface {
	Backend() Backend
	Describe() Target

	// Acquire blocks until a connection is available or ctx is done.
	// A closed pool reports ErrPoolClosed.
	Acquire(ctx context.Context) (EngineConn, error)

	// TryAcquire returns an idle connection without waiting. ok is false
	// when none is available; that is not an error.
	TryAcquire(ctx context.Context) (conn EngineConn, ok bool, err error)

	// Begin acquires a connection and starts a transaction on it. The
	// connection is returned to the pool when the transaction finishes.
	Begin(ctx context.Context) (EngineTx, error)

	// Close shuts the pool down. Must be idempotent.
	Close(ctx context.Context) error

	Size() int
	NumIdle() int
	IsClosed() bool
}

// EngineConn is a single checked-out connection.
type EngineConn interface {
	Exec(ctx context.Context, sql string, args ...any) (affected int64, err error)
	Query(ctx context.Context, sql string, args ...any) (EngineRows, error)
	Begin(ctx context.Context) (EngineTx, error)
	Ping(ctx context.Context) error

	// Release returns the connection to the pool.
	Release() error
}

// EngineTx is an in-progress transaction. The core owns the
// open/committed/rolled-back state machine; the engine only executes.
type EngineTx interface {
	Exec(ctx context.Context, sql string, args ...any) (affected int64, err error)
	Query(ctx context.Context, sql string, args ...any) (EngineRows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EngineRows is a streaming result set. The shape matches both *sql.Rows
// and pgx.Rows so adapters stay thin.
type EngineRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}
