package sqlite

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	dbpool "github.com/kairos-labs/dbtrace-go/pool"
)

func newMockPool(t *testing.T, monitorPings bool) (*dbpool.Pool, sqlmock.Sqlmock, *tracetest.InMemoryExporter) {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(monitorPings),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := Wrap(db, "/var/lib/app/app.db", dbpool.WithTracerProvider(tp))
	return p, mock, exporter
}

func spanByName(exporter *tracetest.InMemoryExporter, name string) (tracetest.SpanStub, bool) {
	for _, s := range exporter.GetSpans() {
		if s.Name == name {
			return s, true
		}
	}
	return tracetest.SpanStub{}, false
}

func attrValue(s tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestEngineDescribe(t *testing.T) {
	t.Run("given a file path, then it plays the host role", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		engine := NewEngine(db, "/var/lib/app/app.db")

		assert.Equal(t, dbpool.BackendSQLite, engine.Backend())
		assert.Equal(t, "/var/lib/app/app.db", engine.Describe().Host)
	})
}

func TestPoolQuery(t *testing.T) {
	t.Run("given a result set, then rows flow through with a counted span", func(t *testing.T) {
		p, mock, exporter := newMockPool(t, false)

		mock.ExpectQuery("SELECT id, name FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(1, "ana").
				AddRow(2, "bo"))

		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		defer func() { _ = conn.Release() }()

		rows, err := conn.Query(context.Background(), "SELECT id, name FROM users")
		require.NoError(t, err)

		var names []string
		for rows.Next() {
			var id int
			var name string
			require.NoError(t, rows.Scan(&id, &name))
			names = append(names, name)
		}
		require.NoError(t, rows.Close())
		assert.Equal(t, []string{"ana", "bo"}, names)

		span, ok := spanByName(exporter, "db.query")
		require.True(t, ok)

		system, ok := attrValue(span, "db.system.name")
		require.True(t, ok)
		assert.Equal(t, "sqlite", system.AsString())

		host, ok := attrValue(span, "net.peer.name")
		require.True(t, ok)
		assert.Equal(t, "/var/lib/app/app.db", host.AsString())

		count, ok := attrValue(span, "db.response.returned_rows")
		require.True(t, ok)
		assert.Equal(t, int64(2), count.AsInt64())

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPoolExec(t *testing.T) {
	t.Run("given an update, then affected rows reach the caller and the span", func(t *testing.T) {
		p, mock, exporter := newMockPool(t, false)

		mock.ExpectExec("UPDATE users SET active = 1").
			WillReturnResult(sqlmock.NewResult(0, 3))

		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		defer func() { _ = conn.Release() }()

		affected, err := conn.Exec(context.Background(), "UPDATE users SET active = 1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), affected)

		span, ok := spanByName(exporter, "db.exec")
		require.True(t, ok)
		count, ok := attrValue(span, "db.response.affected_rows")
		require.True(t, ok)
		assert.Equal(t, int64(3), count.AsInt64())

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPoolTransaction(t *testing.T) {
	t.Run("given a commit, then the pinned connection is released", func(t *testing.T) {
		p, mock, exporter := newMockPool(t, false)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users (name) VALUES (?)").
			WithArgs("ana").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := p.Begin(context.Background())
		require.NoError(t, err)

		_, err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES (?)", "ana")
		require.NoError(t, err)
		require.NoError(t, tx.Commit(context.Background()))

		_, ok := spanByName(exporter, "db.transaction.begin")
		assert.True(t, ok)
		_, ok = spanByName(exporter, "db.transaction.commit")
		assert.True(t, ok)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("given a rollback, then changes are discarded", func(t *testing.T) {
		p, mock, _ := newMockPool(t, false)

		mock.ExpectBegin()
		mock.ExpectRollback()

		tx, err := p.Begin(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(context.Background()))

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("given a finished transaction, then reuse fails with ErrTxClosed", func(t *testing.T) {
		p, mock, _ := newMockPool(t, false)

		mock.ExpectBegin()
		mock.ExpectCommit()

		tx, err := p.Begin(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Commit(context.Background()))

		_, err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES (?)", "bo")
		require.ErrorIs(t, err, dbpool.ErrTxClosed)
		require.ErrorIs(t, tx.Rollback(context.Background()), dbpool.ErrTxClosed)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPoolPing(t *testing.T) {
	t.Run("given a healthy database, then ping succeeds with a span", func(t *testing.T) {
		p, mock, exporter := newMockPool(t, true)

		mock.ExpectPing()

		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		defer func() { _ = conn.Release() }()

		require.NoError(t, conn.Ping(context.Background()))

		_, ok := spanByName(exporter, "db.connection.ping")
		assert.True(t, ok)
	})
}

func TestPoolClose(t *testing.T) {
	t.Run("given a closed pool, then acquire fails fast with ErrPoolClosed", func(t *testing.T) {
		p, mock, _ := newMockPool(t, false)

		mock.ExpectClose()

		require.NoError(t, p.Close(context.Background()))
		assert.True(t, p.IsClosed())

		_, err := p.Acquire(context.Background())
		require.ErrorIs(t, err, dbpool.ErrPoolClosed)

		_, err = p.Begin(context.Background())
		require.ErrorIs(t, err, dbpool.ErrPoolClosed)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConnLevelTransaction(t *testing.T) {
	t.Run("given a transaction begun on a connection, then release rolls it back", func(t *testing.T) {
		p, mock, exporter := newMockPool(t, false)

		mock.ExpectBegin()
		mock.ExpectRollback()

		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)

		_, err = conn.Begin(context.Background())
		require.NoError(t, err)

		require.NoError(t, conn.Release())

		_, ok := spanByName(exporter, "db.transaction.rollback")
		assert.True(t, ok)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// Open is exercised lightly: it must hand back a working pool without
// touching the file until first use.
func TestOpen(t *testing.T) {
	t.Run("given an in-memory path, then open succeeds lazily", func(t *testing.T) {
		p, err := Open(":memory:")
		require.NoError(t, err)
		require.NotNil(t, p)
		require.NoError(t, p.Close(context.Background()))
	})
}
