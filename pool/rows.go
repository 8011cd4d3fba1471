package pool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Rows is a streaming result set that owns the span of the query that
// produced it. The span is closed exactly once, in Close, recording how
// many rows the caller consumed. Callers must Close the rows on every
// path; cancelling the surrounding context surfaces through Err and is
// still recorded at Close.
type Rows struct {
	rows EngineRows
	span trace.Span
	cfg  *config

	ctx       context.Context
	operation string
	start     time.Time
	count     int64
	closed    bool
}

func newRows(
	ctx context.Context,
	rows EngineRows,
	span trace.Span,
	cfg *config,
	operation string,
	start time.Time,
) *Rows {
	return &Rows{
		rows:      rows,
		span:      span,
		cfg:       cfg,
		ctx:       ctx,
		operation: operation,
		start:     start,
	}
}

// Next advances to the next row.
func (r *Rows) Next() bool {
	if r.rows.Next() {
		r.count++
		return true
	}
	return false
}

// Scan copies the current row's columns into dest.
func (r *Rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Err returns the error, if any, encountered during iteration.
func (r *Rows) Err() error {
	return r.rows.Err()
}

// Close releases the result set and ends the query span, recording the
// number of rows returned. Closing twice is a no-op.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.rows.Close()
	if err == nil {
		err = r.rows.Err()
	}

	r.cfg.Metrics.recordOpDuration(r.ctx, time.Since(r.start), r.operation, r.cfg.baseAttributes(), err)

	r.span.SetAttributes(attribute.Int64(attrReturnedRows, r.count))
	if err != nil {
		recordSpanError(r.span, err, r.cfg.RecordErrorDetail)
	}
	r.span.End()

	return err
}
