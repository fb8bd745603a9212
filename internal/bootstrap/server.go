package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/api"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/database"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

const shutdownTimeout = 15 * time.Second

// SetupHTTPServer builds the gin router and wraps it in an http.Server.
func SetupHTTPServer(cfg *config.Config, db *database.DB, pipeline *Pipeline, log logger.Logger) *http.Server {
	router := api.NewRouter(api.Deps{
		Coordinator: pipeline.Coordinator,
		Listings:    pipeline.Listings,
		Aggregator:  pipeline.Aggregator,
		DB:          db,
		Config:      cfg,
		Logger:      log,
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// RunServer serves until ctx is cancelled, then shuts down gracefully:
// stop accepting requests, drain the worker pool, and return.
func RunServer(ctx context.Context, server *http.Server, pipeline *Pipeline, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", logger.Error(err))
	}

	if err := pipeline.Pool.Stop(shutdownCtx); err != nil {
		log.Warn("Worker pool stop", logger.Error(err))
	}

	return nil
}

// StartPayloadSweeper deletes expired raw payloads on a fixed interval until
// ctx is cancelled.
func StartPayloadSweeper(ctx context.Context, payloads *repository.RawPayloadRepository, interval time.Duration, log logger.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := payloads.DeleteExpired(ctx, time.Now().UTC())
				if err != nil {
					log.Error("Payload sweep failed", logger.Error(err))
					continue
				}
				if deleted > 0 {
					log.Info("Swept expired payloads",
						logger.Int64("deleted", deleted),
					)
				}
			}
		}
	}()
}
