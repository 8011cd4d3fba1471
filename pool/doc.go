// Package pool wraps a database connection pool with OpenTelemetry
// tracing and metrics without changing query semantics.
//
// The package instruments three object lifetimes: the pool itself
// (acquire/close), checked-out connections (queries, ping, begin), and
// transactions (begin/commit/rollback). Every wrapped operation is
// bracketed by exactly one span; errors are classified and re-surfaced
// unchanged.
//
// # Quick Start
//
//	import (
//	    dbpool "github.com/kairos-labs/dbtrace-go/pool"
//	    "github.com/kairos-labs/dbtrace-go/pool/adapters/postgres"
//	)
//
//	p, err := postgres.Open(ctx, "postgres://app@db.internal:5432/orders",
//	    dbpool.WithName("orders-db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close(context.Background())
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Release()
//
//	rows, err := conn.Query(ctx, "SELECT id FROM orders WHERE status = $1", "open")
//	if err != nil {
//	    return err
//	}
//	defer rows.Close()
//	for rows.Next() {
//	    // ...
//	}
//
// # Spans
//
// Lifecycle operations (acquire, close, begin, commit, rollback, ping)
// emit lightweight spans carrying only the pool's descriptive attributes.
// SQL-executing operations emit full spans that additionally carry the
// query text (unless disabled with WithQueryTextRecording) and the number
// of rows returned or affected.
//
// Span names are stable across versions so observability backends can
// aggregate on them: db.pool.acquire, db.pool.close, db.transaction.begin,
// db.transaction.commit, db.transaction.rollback, db.connection.ping,
// db.exec, db.query.
//
// # Sensitive data
//
// Two toggles gate what leaves the process: WithQueryTextRecording(false)
// drops raw SQL from spans, and WithErrorDetailRecording(false) drops
// error messages while keeping the error kind and backend status code, so
// aggregate dashboards keep working in locked-down environments.
//
// # Escape hatch
//
// Pool.Engine returns the wrapped engine. Operations performed directly
// on it are not traced; this is the intended bypass for features the
// wrapper does not cover.
package pool
