package bootstrap

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/adapter"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/components"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/database"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/dedup"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/events"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/ingest"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/jobs"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/metrics"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/normalize"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/render"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

// Adapter priority ranks: the official API is authoritative, static markup is
// the cheap fallback, rendering is the expensive last resort.
const (
	priorityMarketAPI = 10
	priorityMarkup    = 20
	priorityRendered  = 30
)

// Pipeline bundles the wired ingestion components.
type Pipeline struct {
	Coordinator *jobs.Coordinator
	Pool        *jobs.Pool
	Listings    *repository.ListingRepository
	Payloads    *repository.RawPayloadRepository
	Aggregator  *metrics.Aggregator
}

// attemptSink forwards failed-attempt payloads to the orchestrator. It exists
// to break the construction cycle between router and orchestrator.
type attemptSink struct {
	orch *ingest.Orchestrator
}

func (s *attemptSink) StoreAttempt(ctx context.Context, adapterName string, kind domain.PayloadKind, payload []byte) {
	if s.orch != nil {
		s.orch.StoreAttempt(ctx, adapterName, kind, payload)
	}
}

// SetupPipeline wires the adapter chain, normalizer, dedup, orchestrator, and
// job coordinator. baseCtx bounds background job execution.
func SetupPipeline(
	baseCtx context.Context,
	cfg *config.Config,
	db *database.DB,
	publisher *events.Publisher,
	log logger.Logger,
) (*Pipeline, error) {
	aggregator := metrics.NewAggregator(prometheus.DefaultRegisterer)

	listingRepo := repository.NewListingRepository(db.DB(), log)
	payloadRepo := repository.NewRawPayloadRepository(db.DB(), log)
	jobRepo := repository.NewJobRepository(db.DB(), log)

	registry := buildRegistry(cfg, log)
	gate := adapter.NewGate(cfg.Adapters.MaxInFlight, cfg.Adapters.MaxRPS)
	timeouts := map[string]time.Duration{
		adapter.MarketAPIName: cfg.Adapters.MarketAPI.Timeout,
		adapter.MarkupName:    cfg.Adapters.Markup.Timeout,
		adapter.RenderedName:  cfg.Adapters.Rendered.Timeout,
	}

	sink := &attemptSink{}
	router := adapter.NewRouter(registry, gate, timeouts, aggregator, log,
		adapter.WithPayloadSink(sink))

	var lookup normalize.ComponentLookup
	if cfg.Components.BaseURL != "" {
		lookup = components.NewClient(cfg.Components, log)
	}
	normalizer := normalize.NewNormalizer(lookup, log)

	resolver := dedup.NewService(listingRepo, log)

	orchestrator := ingest.NewOrchestrator(
		router,
		normalizer,
		resolver,
		listingRepo,
		payloadRepo,
		publisher,
		ingest.Config{
			PriceChangeAbsThreshold: cfg.Ingest.PriceChangeAbsThreshold,
			PriceChangePctThreshold: cfg.Ingest.PriceChangePctThreshold,
			RawPayloadRetentionDays: cfg.Ingest.RawPayloadRetentionDays,
			RawPayloadMaxBytes:      cfg.Ingest.RawPayloadMaxBytes,
		},
		log,
	)
	sink.orch = orchestrator

	pool, err := jobs.NewPool(cfg.Ingest.WorkerPoolSize, log)
	if err != nil {
		return nil, err
	}
	if err := pool.Start(); err != nil {
		return nil, err
	}

	coordinator := jobs.NewCoordinator(baseCtx, orchestrator, jobRepo, pool, log)

	return &Pipeline{
		Coordinator: coordinator,
		Pool:        pool,
		Listings:    listingRepo,
		Payloads:    payloadRepo,
		Aggregator:  aggregator,
	}, nil
}

// buildRegistry fills the static adapter table from configuration. Disabled
// adapters are registered disabled so the router never constructs them.
func buildRegistry(cfg *config.Config, log logger.Logger) *adapter.Registry {
	registry := adapter.NewRegistry()

	marketCfg := cfg.Adapters.MarketAPI
	registry.Register(adapter.Registration{
		Name:     adapter.MarketAPIName,
		Domains:  marketCfg.Domains,
		Priority: priorityMarketAPI,
		Enabled:  marketCfg.Enabled,
		Build: func() adapter.Adapter {
			return adapter.NewMarketAPIAdapter(marketCfg, log)
		},
	})

	markupCfg := cfg.Adapters.Markup
	registry.Register(adapter.Registration{
		Name:     adapter.MarkupName,
		Domains:  markupCfg.Domains,
		Priority: priorityMarkup,
		Enabled:  markupCfg.Enabled,
		Build: func() adapter.Adapter {
			return adapter.NewMarkupAdapter(markupCfg, log)
		},
	})

	renderedCfg := cfg.Adapters.Rendered
	var renderer adapter.Renderer
	if cfg.Render.BaseURL != "" {
		renderer = render.NewClient(cfg.Render, log)
	}
	registry.Register(adapter.Registration{
		Name:     adapter.RenderedName,
		Domains:  renderedCfg.Domains,
		Priority: priorityRendered,
		Enabled:  renderedCfg.Enabled,
		Build: func() adapter.Adapter {
			return adapter.NewRenderedAdapter(renderedCfg, renderer, log)
		},
	})

	return registry
}
