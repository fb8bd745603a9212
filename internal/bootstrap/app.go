// Package bootstrap handles application initialization and lifecycle
// management for the catalog-ingestor service.
package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

const version = "dev"

// Start initializes and runs the catalog-ingestor application.
func Start() error {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Phase 2: Setup database
	db, err := SetupDatabase(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	// Phase 3: Setup event publisher (optional)
	publisher := SetupEventPublisher(cfg, log)

	// Phase 4: Wire the ingestion pipeline
	pipeline, err := SetupPipeline(ctx, cfg, db, publisher, log)
	if err != nil {
		return fmt.Errorf("failed to set up pipeline: %w", err)
	}

	StartPayloadSweeper(ctx, pipeline.Payloads, cfg.Ingest.SweepInterval, log)

	// Phase 5: Run HTTP server
	server := SetupHTTPServer(cfg, db, pipeline, log)

	log.Info("Starting HTTP server",
		logger.String("host", cfg.Server.Host),
		logger.Int("port", cfg.Server.Port),
	)

	if runErr := RunServer(ctx, server, pipeline, log); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return runErr
	}

	log.Info("Server exited")
	return nil
}
