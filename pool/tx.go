package pool

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Tx is an in-progress transaction. It moves from open to exactly one of
// committed or rolled back; after that, every operation on the handle
// returns ErrTxClosed rather than silently succeeding.
//
// A Tx that goes out of scope without an explicit Commit or Rollback
// must still release its locks: either defer Rollback (a rollback after
// Commit returns ErrTxClosed, which deferred callers ignore), or rely on
// the owning Conn's Release, which rolls back any transaction left open.
//
// Tx is its own executor view: queries routed through it use the same
// full-weight span policy as queries on a Conn.
type Tx struct {
	tx  EngineTx
	cfg *config

	// detach unlinks the Tx from the Conn it was begun on, if any.
	detach func()

	mu   sync.Mutex
	done bool
}

// finish moves the transaction out of the open state. Returns false when
// it already left it.
func (t *Tx) finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *Tx) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Commit commits the transaction. On failure the underlying transaction
// is in an indeterminate state; the handle becomes terminal either way
// and the error is surfaced without retry.
func (t *Tx) Commit(ctx context.Context) error {
	if !t.finish() {
		return ErrTxClosed
	}
	if t.detach != nil {
		t.detach()
	}

	start := time.Now()
	ctx, span := t.cfg.startOpSpan(ctx, spanTxCommit)
	defer span.End()

	err := t.tx.Commit(ctx)

	t.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "COMMIT", t.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, t.cfg.RecordErrorDetail)
	}

	return err
}

// Rollback aborts the transaction, discarding its changes. Rolling back
// a finished transaction returns ErrTxClosed without emitting a span: no
// database operation takes place.
func (t *Tx) Rollback(ctx context.Context) error {
	if !t.finish() {
		return ErrTxClosed
	}
	if t.detach != nil {
		t.detach()
	}

	start := time.Now()
	ctx, span := t.cfg.startOpSpan(ctx, spanTxRollback)
	defer span.End()

	err := t.tx.Rollback(ctx)

	t.cfg.Metrics.recordOpDuration(ctx, time.Since(start), "ROLLBACK", t.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, t.cfg.RecordErrorDetail)
	}

	return err
}

// Exec runs a statement inside the transaction and reports the number of
// rows affected.
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if t.isDone() {
		return 0, ErrTxClosed
	}

	start := time.Now()
	ctx, span := t.cfg.startQuerySpan(ctx, spanExec, sql)
	defer span.End()

	affected, err := t.tx.Exec(ctx, sql, args...)

	t.cfg.Metrics.recordOpDuration(ctx, time.Since(start), extractOperation(sql), t.cfg.baseAttributes(), err)

	if err != nil {
		recordSpanError(span, err, t.cfg.RecordErrorDetail)
		return 0, err
	}

	span.SetAttributes(attribute.Int64(attrAffectedRows, affected))
	return affected, nil
}

// Query runs a statement inside the transaction and returns its rows.
// As with Conn.Query, the returned Rows owns the span and closes it.
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	if t.isDone() {
		return nil, ErrTxClosed
	}

	start := time.Now()
	ctx, span := t.cfg.startQuerySpan(ctx, spanQuery, sql)

	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		t.cfg.Metrics.recordOpDuration(ctx, time.Since(start), extractOperation(sql), t.cfg.baseAttributes(), err)
		recordSpanError(span, err, t.cfg.RecordErrorDetail)
		span.End()
		return nil, err
	}

	return newRows(ctx, rows, span, t.cfg, extractOperation(sql), start), nil
}
