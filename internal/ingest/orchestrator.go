// Package ingest composes the pipeline for one URL: route → extract →
// normalize → deduplicate → persist → event.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/adapter"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/dedup"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/events"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

// Stage names the orchestrator's state machine positions. Every invocation
// walks them in order; failed is reachable from any stage.
type Stage string

const (
	StageRouting       Stage = "routing"
	StageExtracting    Stage = "extracting"
	StageNormalizing   Stage = "normalizing"
	StageDeduplicating Stage = "deduplicating"
	StagePersisting    Stage = "persisting"
	StageEventing      Stage = "eventing"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// ProgressFunc receives stage transitions so the job coordinator can report
// milestone progress. May be nil.
type ProgressFunc func(stage Stage)

// Router drives the adapter fallback chain.
type Router interface {
	Extract(ctx context.Context, rawURL string) (*adapter.Result, error)
}

// Normalizer turns a raw extraction into a canonical record.
type Normalizer interface {
	Normalize(ctx context.Context, raw *adapter.RawExtraction) (*domain.ListingRecord, error)
}

// Resolver matches a record against existing listings.
type Resolver interface {
	Resolve(ctx context.Context, record *domain.ListingRecord) (*dedup.Match, error)
}

// ListingStore is the catalog persistence surface the orchestrator needs.
type ListingStore interface {
	Create(ctx context.Context, listing *domain.CatalogListing) error
	Update(ctx context.Context, listing *domain.CatalogListing) error
	GetByID(ctx context.Context, id string) (*domain.CatalogListing, error)
}

// PayloadStore retains raw adapter responses.
type PayloadStore interface {
	Insert(ctx context.Context, payload *domain.RawPayload) error
}

// Publisher emits listing lifecycle events.
type Publisher interface {
	PublishAsync(event events.ListingEvent)
}

// Config holds the orchestrator thresholds.
type Config struct {
	PriceChangeAbsThreshold float64
	PriceChangePctThreshold float64
	RawPayloadRetentionDays int
	RawPayloadMaxBytes      int
}

// Result is the outcome of one successful ingestion.
type Result struct {
	ListingID  string          `json:"listing_id"`
	Provenance string          `json:"provenance"`
	Quality    domain.Quality  `json:"quality"`
	Created    bool            `json:"created"`
	MatchKind  dedup.MatchKind `json:"match_kind"`
}

// updateAttempts bounds optimistic-version retries when two re-ingests of
// the same identity race.
const updateAttempts = 3

// Orchestrator is the unit of work for a single URL.
type Orchestrator struct {
	router     Router
	normalizer Normalizer
	resolver   Resolver
	listings   ListingStore
	payloads   PayloadStore
	publisher  Publisher
	cfg        Config
	logger     logger.Logger
}

func NewOrchestrator(
	router Router,
	normalizer Normalizer,
	resolver Resolver,
	listings ListingStore,
	payloads PayloadStore,
	publisher Publisher,
	cfg Config,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		router:     router,
		normalizer: normalizer,
		resolver:   resolver,
		listings:   listings,
		payloads:   payloads,
		publisher:  publisher,
		cfg:        cfg,
		logger:     log,
	}
}

// Ingest runs the full pipeline for one URL.
func (o *Orchestrator) Ingest(ctx context.Context, rawURL string, progress ProgressFunc) (*Result, error) {
	report := func(stage Stage) {
		if progress != nil {
			progress(stage)
		}
	}

	report(StageRouting)
	report(StageExtracting)
	routed, err := o.router.Extract(ctx, rawURL)
	if err != nil {
		report(StageFailed)
		return nil, err
	}

	report(StageNormalizing)
	record, err := o.normalizer.Normalize(ctx, routed.Extraction)
	if err != nil {
		report(StageFailed)
		return nil, domain.NewExtractionError(routed.Provenance, domain.CodeInvalidResponse, err)
	}

	report(StageDeduplicating)
	match, err := o.resolver.Resolve(ctx, record)
	if err != nil {
		report(StageFailed)
		return nil, fmt.Errorf("deduplicate: %w", err)
	}

	report(StagePersisting)
	listing, created, oldPrice, err := o.persist(ctx, record, match, routed.Provenance)
	if err != nil {
		report(StageFailed)
		return nil, fmt.Errorf("persist: %w", err)
	}

	o.storePayload(ctx, listing.ID, routed.Provenance, routed.Extraction)

	report(StageEventing)
	o.emitEvents(listing, created, oldPrice)

	report(StageDone)
	return &Result{
		ListingID:  listing.ID,
		Provenance: routed.Provenance,
		Quality:    listing.Quality,
		Created:    created,
		MatchKind:  match.Kind,
	}, nil
}

// persist creates a new listing or updates the matched one in place. Updates
// retry on optimistic-version conflicts so concurrent re-ingests of the same
// identity serialize instead of losing writes. The third return is the
// pre-update price when this merge moved it, nil otherwise.
func (o *Orchestrator) persist(
	ctx context.Context,
	record *domain.ListingRecord,
	match *dedup.Match,
	provenance string,
) (*domain.CatalogListing, bool, *float64, error) {
	now := time.Now().UTC()

	if match.Existing == nil {
		listing := listingFromRecord(record, provenance, now)
		if err := o.listings.Create(ctx, listing); err != nil {
			return nil, false, nil, fmt.Errorf("create listing: %w", err)
		}
		return listing, true, nil, nil
	}

	existing := match.Existing
	for attempt := 1; ; attempt++ {
		updated, oldPrice := mergeListing(existing, record, provenance, now)

		err := o.listings.Update(ctx, updated)
		if err == nil {
			return updated, false, oldPrice, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= updateAttempts {
			return nil, false, nil, fmt.Errorf("update listing %s: %w", existing.ID, err)
		}

		fresh, getErr := o.listings.GetByID(ctx, existing.ID)
		if getErr != nil {
			return nil, false, nil, fmt.Errorf("refetch listing %s: %w", existing.ID, getErr)
		}
		existing = fresh
	}
}

// listingFromRecord builds a brand-new catalog listing.
func listingFromRecord(record *domain.ListingRecord, provenance string, now time.Time) *domain.CatalogListing {
	return &domain.CatalogListing{
		ID:           uuid.New().String(),
		Title:        record.Title,
		Price:        record.Price,
		Currency:     record.Currency,
		Condition:    record.Condition,
		Images:       record.Images,
		Seller:       record.Seller,
		Marketplace:  record.Marketplace,
		VendorItemID: record.VendorItemID,
		ContentHash:  domain.ContentHash(record.Title, record.Seller, record.Price),
		CPUModel:     record.CPUModel,
		CPUID:        record.CPUID,
		RAMGB:        record.RAMGB,
		StorageGB:    record.StorageGB,
		Manufacturer: record.Manufacturer,
		ModelNumber:  record.ModelNumber,
		Description:  record.Description,
		SourceURL:    record.SourceURL,
		Provenance:   provenance,
		Quality:      record.Quality,
		LastSeenAt:   now,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// mergeListing applies a fresh extraction to an existing listing without
// discarding fields the new extraction did not populate. The second return
// is the pre-update price when this merge changed it; the persisted
// PreviousPrice keeps the last differing price and must not be read as
// "the price moved just now".
func mergeListing(
	existing *domain.CatalogListing,
	record *domain.ListingRecord,
	provenance string,
	now time.Time,
) (*domain.CatalogListing, *float64) {
	updated := *existing

	var movedFrom *float64
	if existing.Price != record.Price {
		previous := existing.Price
		updated.PreviousPrice = &previous
		movedFrom = &previous
	}

	updated.Title = record.Title
	updated.Price = record.Price
	updated.Currency = record.Currency
	updated.Condition = record.Condition
	updated.ContentHash = domain.ContentHash(record.Title, record.Seller, record.Price)
	updated.Provenance = provenance
	updated.Quality = record.Quality
	updated.LastSeenAt = now
	updated.UpdatedAt = now

	if len(record.Images) > 0 {
		updated.Images = record.Images
	}
	if record.Seller != "" {
		updated.Seller = record.Seller
	}
	if record.VendorItemID != "" {
		updated.VendorItemID = record.VendorItemID
	}
	if record.CPUModel != "" {
		updated.CPUModel = record.CPUModel
	}
	if record.CPUID != "" {
		updated.CPUID = record.CPUID
	}
	if record.RAMGB != 0 {
		updated.RAMGB = record.RAMGB
	}
	if record.StorageGB != 0 {
		updated.StorageGB = record.StorageGB
	}
	if record.Manufacturer != "" {
		updated.Manufacturer = record.Manufacturer
	}
	if record.ModelNumber != "" {
		updated.ModelNumber = record.ModelNumber
	}
	if record.Description != "" {
		updated.Description = record.Description
	}
	if record.SourceURL != "" {
		updated.SourceURL = record.SourceURL
	}

	return &updated, movedFrom
}

// storePayload writes the successful extraction's raw payload. Best-effort:
// a failure is logged and never fails the job.
func (o *Orchestrator) storePayload(ctx context.Context, listingID, adapterName string, ext *adapter.RawExtraction) {
	if o.payloads == nil || len(ext.Payload) == 0 {
		return
	}

	payload := o.boundedPayload(ext.Payload)
	now := time.Now().UTC()

	err := o.payloads.Insert(ctx, &domain.RawPayload{
		ID:          uuid.New().String(),
		ListingID:   listingID,
		AdapterName: adapterName,
		PayloadKind: ext.PayloadKind,
		Payload:     payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(o.cfg.RawPayloadRetentionDays) * 24 * time.Hour),
	})
	if err != nil {
		o.logger.Warn("Raw payload write failed",
			logger.String("listing_id", listingID),
			logger.Error(err),
		)
	}
}

// StoreAttempt retains the upstream body from a failed adapter attempt.
// Implements the router's payload sink; no listing exists yet at this point.
func (o *Orchestrator) StoreAttempt(ctx context.Context, adapterName string, kind domain.PayloadKind, payload []byte) {
	if o.payloads == nil || len(payload) == 0 {
		return
	}

	now := time.Now().UTC()
	err := o.payloads.Insert(ctx, &domain.RawPayload{
		ID:          uuid.New().String(),
		AdapterName: adapterName,
		PayloadKind: kind,
		Payload:     o.boundedPayload(payload),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(o.cfg.RawPayloadRetentionDays) * 24 * time.Hour),
	})
	if err != nil {
		o.logger.Debug("Failed-attempt payload write failed",
			logger.String("adapter", adapterName),
			logger.Error(err),
		)
	}
}

func (o *Orchestrator) boundedPayload(payload []byte) []byte {
	if o.cfg.RawPayloadMaxBytes > 0 && len(payload) > o.cfg.RawPayloadMaxBytes {
		return payload[:o.cfg.RawPayloadMaxBytes]
	}
	return payload
}

// emitEvents fires listing.created unconditionally on create, and
// listing.price_changed when the current update moved the price across the
// configured thresholds. oldPrice is the pre-update price of this merge;
// nil means the price did not move and no event fires, whatever the stored
// PreviousPrice says.
func (o *Orchestrator) emitEvents(listing *domain.CatalogListing, created bool, oldPrice *float64) {
	if o.publisher == nil {
		return
	}

	if created {
		o.publisher.PublishAsync(events.ListingEvent{
			EventType:   events.ListingCreated,
			ListingID:   listing.ID,
			Marketplace: listing.Marketplace,
			SourceURL:   listing.SourceURL,
			NewPrice:    listing.Price,
			Currency:    listing.Currency,
		})
		return
	}

	if oldPrice == nil {
		return
	}
	if !o.priceChanged(*oldPrice, listing.Price) {
		return
	}

	o.publisher.PublishAsync(events.ListingEvent{
		EventType:   events.ListingPriceChanged,
		ListingID:   listing.ID,
		Marketplace: listing.Marketplace,
		SourceURL:   listing.SourceURL,
		OldPrice:    *oldPrice,
		NewPrice:    listing.Price,
		Currency:    listing.Currency,
	})
}

// priceChanged applies the delta rule: fire iff the absolute move meets the
// absolute threshold or the relative move meets the percent threshold.
func (o *Orchestrator) priceChanged(oldPrice, newPrice float64) bool {
	delta := math.Abs(newPrice - oldPrice)
	if delta >= o.cfg.PriceChangeAbsThreshold {
		return true
	}
	if oldPrice > 0 && delta/oldPrice >= o.cfg.PriceChangePctThreshold {
		return true
	}
	return false
}
