package database

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kairos-labs/dbtrace-go/example/pool/internal/config"
	dbpool "github.com/kairos-labs/dbtrace-go/pool"
	"github.com/kairos-labs/dbtrace-go/pool/adapters/postgres"
)

// DB bundles the instrumented pool for the example's operations.
type DB struct {
	Pool *dbpool.Pool
}

// New opens an instrumented Postgres pool. Host, port, and database are
// derived from the DSN; the logical name is set explicitly so dashboards
// can tell this pool apart from others in the same service.
func New(ctx context.Context, logger zerolog.Logger) (*DB, error) {
	p, err := postgres.Open(ctx, config.DefaultDSN,
		dbpool.WithName(config.DefaultName),
		dbpool.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &DB{Pool: p}, nil
}

// Close shuts the pool down.
func (db *DB) Close(ctx context.Context) error {
	return db.Pool.Close(ctx)
}
