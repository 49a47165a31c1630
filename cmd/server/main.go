// Suasor - Hybrid Product Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/suasor

// Package main is the entry point for the Suasor server.
//
// Suasor trains per-scope hybrid recommendation models from product review
// data in DuckDB and serves ranked recommendations over a REST API. Each
// scope (product category) gets its own latent-factor model plus a content
// feature matrix; the two signals are blended at scoring time.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and environment (Koanf v2)
//  2. Database: DuckDB with per-scope ratings and metadata tables
//  3. Model registry: BadgerDB store of trained scope bundles
//  4. Warm start: previously persisted bundles are published for serving
//  5. Jobs: trainer, batch precompute, and the shared job runner
//  6. Supervisor tree: training scheduler and HTTP server under suture
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Cancels any running training or batch job
//   - Closes the model registry and database connections
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/suasor/internal/api"
	"github.com/tomtom215/suasor/internal/batch"
	"github.com/tomtom215/suasor/internal/config"
	"github.com/tomtom215/suasor/internal/database"
	"github.com/tomtom215/suasor/internal/logging"
	"github.com/tomtom215/suasor/internal/recommend"
	"github.com/tomtom215/suasor/internal/recommend/storage"
	"github.com/tomtom215/suasor/internal/recommend/trainer"
	"github.com/tomtom215/suasor/internal/supervisor"
	"github.com/tomtom215/suasor/internal/supervisor/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// batchAdapter narrows batch.Job.Run to the error-only signature the job
// runner wants; the report is already logged by the job itself.
type batchAdapter struct {
	job *batch.Job
}

func (b batchAdapter) Run(ctx context.Context, scopes []string) error {
	_, err := b.job.Run(ctx, scopes)
	return err
}

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("registry_path", cfg.Registry.Path).
		Int("scopes", len(cfg.Scopes)).
		Msg("Starting Suasor")

	db, err := database.New(&cfg.Database, cfg.Scopes)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.EnsureRecommendationTables(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recommendation tables")
	}
	logging.Info().Msg("Database initialized successfully")

	registry, err := storage.OpenModelRegistry(cfg.Registry.Path, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open model registry")
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing model registry")
		}
	}()

	scopes := recommend.NewScopeRegistry()
	warmStart(registry, scopes)

	chunks, err := storage.NewChunkStore(cfg.Train.WorkDir, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create chunk store")
	}

	engine := recommend.NewEngine(scopes, cfg.Batch.TopN, logging.Logger())
	trn := trainer.New(cfg.Train, db, registry, scopes, chunks, logging.Logger())
	job := batch.New(cfg.Batch, engine, db, db, logging.Logger())

	jobs := newJobRunner(ctx, trn, batchAdapter{job: job}, cfg.ScopeNames(), logging.Logger())

	handler := api.NewHandler(engine, scopes, jobs, db, db, cfg.ScopeNames(), version)
	router := api.NewRouter(handler, &cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// sutureslog wants slog; bridge it to the zerolog root.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddJobService(services.NewTrainScheduler(jobs, services.TrainSchedulerConfig{
		OnStartup: cfg.Train.OnStartup,
		Interval:  cfg.Train.Interval,
	}, logging.Logger()))

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// warmStart publishes every bundle persisted in the model registry so the
// API can serve recommendations immediately, without waiting for the first
// training pass. Individual load failures are logged and skipped; a stale
// bundle is replaced on the next successful train.
func warmStart(registry *storage.ModelRegistry, scopes *recommend.ScopeRegistry) {
	persisted, err := registry.ListScopes()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to list persisted models")
		return
	}

	loaded := 0
	for _, scope := range persisted {
		bundle, err := registry.LoadBundle(scope)
		if err != nil {
			logging.Warn().Err(err).Str("scope", scope).Msg("Failed to load persisted model")
			continue
		}
		if err := scopes.Publish(bundle); err != nil {
			logging.Warn().Err(err).Str("scope", scope).Msg("Failed to publish persisted model")
			continue
		}
		loaded++
	}

	if loaded > 0 {
		logging.Info().Int("scopes", loaded).Msg("Warm start: persisted models published")
	} else {
		logging.Info().Msg("No persisted models found; serving waits for first training pass")
	}
}
