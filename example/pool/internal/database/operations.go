package database

import (
	"context"

	"github.com/rs/zerolog/log"
)

// CreateTable creates the accounts table if it doesn't exist.
func (db *DB) CreateTable(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Release() }()

	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id SERIAL PRIMARY KEY,
			owner VARCHAR(100) UNIQUE,
			balance BIGINT NOT NULL DEFAULT 0
		)
	`)
	return err
}

// SeedAccounts inserts sample accounts.
func (db *DB) SeedAccounts(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Release() }()

	accounts := []struct {
		Owner   string
		Balance int64
	}{
		{"alice", 1000},
		{"bob", 500},
	}

	for _, a := range accounts {
		_, err := conn.Exec(ctx,
			"INSERT INTO accounts (owner, balance) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			a.Owner, a.Balance,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListAccounts queries and logs the accounts.
func (db *DB) ListAccounts(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Release() }()

	rows, err := conn.Query(ctx, "SELECT owner, balance FROM accounts ORDER BY owner")
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var owner string
		var balance int64
		if err := rows.Scan(&owner, &balance); err != nil {
			return err
		}
		log.Info().Str("owner", owner).Int64("balance", balance).Msg("account")
	}
	return rows.Err()
}

// Transfer moves amount between two accounts in one transaction. Any
// failure rolls the whole transfer back.
func (db *DB) Transfer(ctx context.Context, from, to string, amount int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = balance - $1 WHERE owner = $2", amount, from,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE owner = $2", amount, to,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Probe demonstrates the non-blocking checkout: when nothing is idle it
// reports and moves on instead of waiting.
func (db *DB) Probe(ctx context.Context) error {
	conn, ok, err := db.Pool.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		log.Info().Msg("no idle connection, skipping probe")
		return nil
	}
	defer func() { _ = conn.Release() }()

	return conn.Ping(ctx)
}
