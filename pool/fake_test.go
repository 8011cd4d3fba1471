package pool

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fakeEngine is a scriptable engine for exercising the instrumentation
// layer without a database.
type fakeEngine struct {
	mu sync.Mutex

	backend Backend
	target  Target

	idle       int
	closed     bool
	closeCalls int

	acquireErr error
	beginErr   error

	newConn func() *fakeConn
	newTx   func() *fakeTx
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		backend: BackendPostgres,
		target:  Target{Host: "db.internal", Port: 5432, Database: "orders"},
		idle:    1,
		newConn: func() *fakeConn { return &fakeConn{} },
		newTx:   func() *fakeTx { return &fakeTx{} },
	}
}

func (e *fakeEngine) Backend() Backend { return e.backend }
func (e *fakeEngine) Describe() Target { return e.target }

func (e *fakeEngine) Acquire(_ context.Context) (EngineConn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrPoolClosed
	}
	if e.acquireErr != nil {
		return nil, e.acquireErr
	}
	return e.newConn(), nil
}

func (e *fakeEngine) TryAcquire(_ context.Context) (EngineConn, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false, ErrPoolClosed
	}
	if e.acquireErr != nil {
		return nil, false, e.acquireErr
	}
	if e.idle == 0 {
		return nil, false, nil
	}
	return e.newConn(), true, nil
}

func (e *fakeEngine) Begin(_ context.Context) (EngineTx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrPoolClosed
	}
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	return e.newTx(), nil
}

func (e *fakeEngine) Close(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.closeCalls++
	return nil
}

func (e *fakeEngine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

func (e *fakeEngine) NumIdle() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

func (e *fakeEngine) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

type fakeConn struct {
	execErr  error
	queryErr error
	pingErr  error
	beginErr error

	affected int64
	rows     [][]any

	released bool
	tx       *fakeTx
}

func (c *fakeConn) Exec(_ context.Context, _ string, _ ...any) (int64, error) {
	if c.execErr != nil {
		return 0, c.execErr
	}
	return c.affected, nil
}

func (c *fakeConn) Query(_ context.Context, _ string, _ ...any) (EngineRows, error) {
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return &fakeRows{data: c.rows}, nil
}

func (c *fakeConn) Begin(_ context.Context) (EngineTx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	if c.tx == nil {
		c.tx = &fakeTx{}
	}
	return c.tx, nil
}

func (c *fakeConn) Ping(_ context.Context) error { return c.pingErr }

func (c *fakeConn) Release() error {
	c.released = true
	return nil
}

type fakeTx struct {
	execErr     error
	queryErr    error
	commitErr   error
	rollbackErr error

	affected int64
	rows     [][]any

	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(_ context.Context, _ string, _ ...any) (int64, error) {
	if t.execErr != nil {
		return 0, t.execErr
	}
	return t.affected, nil
}

func (t *fakeTx) Query(_ context.Context, _ string, _ ...any) (EngineRows, error) {
	if t.queryErr != nil {
		return nil, t.queryErr
	}
	return &fakeRows{data: t.rows}, nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return t.rollbackErr
}

type fakeRows struct {
	data    [][]any
	idx     int
	iterErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.idx < len(r.data) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i := range dest {
		if i >= len(row) {
			break
		}
		switch d := dest[i].(type) {
		case *int:
			*d = row[i].(int)
		case *string:
			*d = row[i].(string)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return r.iterErr }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

// newTestPool wraps engine with an in-memory span exporter.
func newTestPool(t *testing.T, engine Engine, opts ...Option) (*Pool, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := Wrap(engine, append([]Option{WithTracerProvider(tp)}, opts...)...)
	return p, exporter
}

// spansNamed filters the exported spans by name.
func spansNamed(exporter *tracetest.InMemoryExporter, name string) []tracetest.SpanStub {
	var out []tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// spanAttrs flattens a span's attributes into a map for assertions.
func spanAttrs(s tracetest.SpanStub) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(s.Attributes))
	for _, kv := range s.Attributes {
		m[string(kv.Key)] = kv.Value
	}
	return m
}
