// Command pool demonstrates the instrumented connection pool against a
// local Postgres, exporting traces over OTLP and metrics to Prometheus.
//
// Run a database and a collector first, then:
//
//	go run .
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kairos-labs/dbtrace-go/example/pool/internal/config"
	"github.com/kairos-labs/dbtrace-go/example/pool/internal/database"
	"github.com/kairos-labs/dbtrace-go/example/pool/internal/telemetry"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	ctx := context.Background()

	shutdownTracing, shutdownMetrics, err := telemetry.Setup(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
		_ = shutdownMetrics(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", config.MetricsAddr).Msg("serving metrics")
		if err := http.ListenAndServe(config.MetricsAddr, nil); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	db, err := database.New(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}
	defer func() { _ = db.Close(ctx) }()

	if err := db.CreateTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("create table failed")
	}
	if err := db.SeedAccounts(ctx); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	if err := db.Transfer(ctx, "alice", "bob", 250); err != nil {
		log.Error().Err(err).Msg("transfer failed")
	}
	if err := db.ListAccounts(ctx); err != nil {
		log.Error().Err(err).Msg("list failed")
	}
	if err := db.Probe(ctx); err != nil {
		log.Error().Err(err).Msg("probe failed")
	}

	log.Info().
		Int("open", db.Pool.Size()).
		Int("idle", db.Pool.NumIdle()).
		Msg("pool state")
}
