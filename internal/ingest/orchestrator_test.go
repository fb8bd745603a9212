package ingest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/adapter"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/dedup"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/events"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/ingest"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/testhelpers"
)

type stubRouter struct {
	result *adapter.Result
	err    error
}

func (s *stubRouter) Extract(_ context.Context, _ string) (*adapter.Result, error) {
	return s.result, s.err
}

type stubNormalizer struct {
	record *domain.ListingRecord
	err    error
}

func (s *stubNormalizer) Normalize(_ context.Context, _ *adapter.RawExtraction) (*domain.ListingRecord, error) {
	return s.record, s.err
}

type stubResolver struct {
	match *dedup.Match
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, _ *domain.ListingRecord) (*dedup.Match, error) {
	return s.match, s.err
}

type fakeListingStore struct {
	created   []*domain.CatalogListing
	updated   []*domain.CatalogListing
	conflicts int
	byID      map[string]*domain.CatalogListing
}

func (f *fakeListingStore) Create(_ context.Context, listing *domain.CatalogListing) error {
	f.created = append(f.created, listing)
	return nil
}

func (f *fakeListingStore) Update(_ context.Context, listing *domain.CatalogListing) error {
	if f.conflicts > 0 {
		f.conflicts--
		return repository.ErrVersionConflict
	}
	f.updated = append(f.updated, listing)
	return nil
}

func (f *fakeListingStore) GetByID(_ context.Context, id string) (*domain.CatalogListing, error) {
	if listing, ok := f.byID[id]; ok {
		return listing, nil
	}
	return nil, repository.ErrListingNotFound
}

type fakePayloadStore struct {
	inserted []*domain.RawPayload
	err      error
}

func (f *fakePayloadStore) Insert(_ context.Context, payload *domain.RawPayload) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, payload)
	return nil
}

type fakePublisher struct {
	events []events.ListingEvent
}

func (f *fakePublisher) PublishAsync(event events.ListingEvent) {
	f.events = append(f.events, event)
}

func defaultConfig() ingest.Config {
	return ingest.Config{
		PriceChangeAbsThreshold: 1.0,
		PriceChangePctThreshold: 0.02,
		RawPayloadRetentionDays: 14,
		RawPayloadMaxBytes:      1024,
	}
}

func routedExtraction() *adapter.Result {
	return &adapter.Result{
		Extraction: &adapter.RawExtraction{
			Title:       "Dell Latitude 7420",
			PriceRaw:    "$499.99",
			Payload:     []byte(`{"title":"Dell Latitude 7420"}`),
			PayloadKind: domain.PayloadStructured,
		},
		Provenance: "market_api",
	}
}

func normalizedRecord(price float64) *domain.ListingRecord {
	return &domain.ListingRecord{
		Title:       "Dell Latitude 7420",
		Price:       price,
		Currency:    "USD",
		Condition:   domain.ConditionUsed,
		Images:      []string{"https://img.example.com/1.jpg"},
		Seller:      "techdeals",
		Marketplace: "ebay.com",
		SourceURL:   "https://www.ebay.com/itm/1",
		Quality:     domain.QualityFull,
	}
}

func newOrchestrator(
	router ingest.Router,
	normalizer ingest.Normalizer,
	resolver ingest.Resolver,
	listings ingest.ListingStore,
	payloads ingest.PayloadStore,
	publisher ingest.Publisher,
) *ingest.Orchestrator {
	return ingest.NewOrchestrator(
		router, normalizer, resolver, listings, payloads, publisher,
		defaultConfig(), testhelpers.NewTestLogger(),
	)
}

func TestIngest_CreatesListingAndFiresCreatedEvent(t *testing.T) {
	store := &fakeListingStore{}
	payloads := &fakePayloadStore{}
	publisher := &fakePublisher{}

	orch := newOrchestrator(
		&stubRouter{result: routedExtraction()},
		&stubNormalizer{record: normalizedRecord(499.99)},
		&stubResolver{match: &dedup.Match{Kind: dedup.MatchNone}},
		store, payloads, publisher,
	)

	var stages []ingest.Stage
	result, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", func(s ingest.Stage) {
		stages = append(stages, s)
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, "market_api", created.Provenance)
	assert.NotEmpty(t, created.ContentHash)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.ListingCreated, publisher.events[0].EventType)

	require.Len(t, payloads.inserted, 1)
	assert.Equal(t, created.ID, payloads.inserted[0].ListingID)

	assert.Equal(t, ingest.StageDone, stages[len(stages)-1])
}

func TestIngest_UpdateMergesWithoutDiscardingFields(t *testing.T) {
	existing := &domain.CatalogListing{
		ID:          "listing-1",
		Title:       "Dell Latitude 7420",
		Price:       499.99,
		Currency:    "USD",
		Condition:   domain.ConditionUsed,
		Images:      []string{"https://img.example.com/old.jpg"},
		Seller:      "techdeals",
		Marketplace: "ebay.com",
		CPUModel:    "i7-1185G7",
		CPUID:       "cpu-i7-1185g7",
		RAMGB:       16,
		Version:     3,
	}

	// The fresh extraction carries no images, no CPU data, and no RAM.
	record := normalizedRecord(499.99)
	record.Images = nil

	store := &fakeListingStore{}
	orch := newOrchestrator(
		&stubRouter{result: routedExtraction()},
		&stubNormalizer{record: record},
		&stubResolver{match: &dedup.Match{Existing: existing, Kind: dedup.MatchPrimary}},
		store, &fakePayloadStore{}, &fakePublisher{},
	)

	result, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
	require.NoError(t, err)

	assert.False(t, result.Created)
	require.Len(t, store.updated, 1)
	updated := store.updated[0]

	assert.Equal(t, []string{"https://img.example.com/old.jpg"}, updated.Images)
	assert.Equal(t, "i7-1185G7", updated.CPUModel)
	assert.Equal(t, "cpu-i7-1185g7", updated.CPUID)
	assert.Equal(t, 16, updated.RAMGB)
	assert.Nil(t, updated.PreviousPrice)
}

func TestIngest_PriceChangeEvents(t *testing.T) {
	tests := []struct {
		name      string
		oldPrice  float64
		newPrice  float64
		wantEvent bool
	}{
		{name: "dollar move meets absolute threshold", oldPrice: 100, newPrice: 101, wantEvent: true},
		{name: "fifty cents on a hundred is noise", oldPrice: 100, newPrice: 100.50, wantEvent: false},
		{name: "small absolute but large relative move", oldPrice: 10, newPrice: 10.25, wantEvent: true},
		{name: "unchanged price", oldPrice: 100, newPrice: 100, wantEvent: false},
		{name: "price drop", oldPrice: 500, newPrice: 450, wantEvent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := &domain.CatalogListing{
				ID:          "listing-1",
				Title:       "Dell Latitude 7420",
				Price:       tt.oldPrice,
				Currency:    "USD",
				Condition:   domain.ConditionUsed,
				Marketplace: "ebay.com",
				Version:     1,
			}

			publisher := &fakePublisher{}
			orch := newOrchestrator(
				&stubRouter{result: routedExtraction()},
				&stubNormalizer{record: normalizedRecord(tt.newPrice)},
				&stubResolver{match: &dedup.Match{Existing: existing, Kind: dedup.MatchPrimary}},
				&fakeListingStore{}, &fakePayloadStore{}, publisher,
			)

			_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
			require.NoError(t, err)

			if !tt.wantEvent {
				assert.Empty(t, publisher.events)
				return
			}
			require.Len(t, publisher.events, 1)
			event := publisher.events[0]
			assert.Equal(t, events.ListingPriceChanged, event.EventType)
			assert.InDelta(t, tt.oldPrice, event.OldPrice, 0.001)
			assert.InDelta(t, tt.newPrice, event.NewPrice, 0.001)
		})
	}
}

func TestIngest_UnchangedPriceAfterEarlierChangeStaysQuiet(t *testing.T) {
	previous := 100.0
	existing := &domain.CatalogListing{
		ID:            "listing-1",
		Title:         "Dell Latitude 7420",
		Price:         200,
		PreviousPrice: &previous,
		Currency:      "USD",
		Condition:     domain.ConditionUsed,
		Marketplace:   "ebay.com",
		Version:       2,
	}

	publisher := &fakePublisher{}
	orch := newOrchestrator(
		&stubRouter{result: routedExtraction()},
		&stubNormalizer{record: normalizedRecord(200)},
		&stubResolver{match: &dedup.Match{Existing: existing, Kind: dedup.MatchPrimary}},
		&fakeListingStore{}, &fakePayloadStore{}, publisher,
	)

	_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
	require.NoError(t, err)

	// The listing changed price once before; re-seeing it at the same price
	// must not replay that event.
	assert.Empty(t, publisher.events)
}

func TestIngest_SecondPriceMoveReportsLatestOldPrice(t *testing.T) {
	previous := 100.0
	existing := &domain.CatalogListing{
		ID:            "listing-1",
		Title:         "Dell Latitude 7420",
		Price:         200,
		PreviousPrice: &previous,
		Currency:      "USD",
		Condition:     domain.ConditionUsed,
		Marketplace:   "ebay.com",
		Version:       2,
	}

	publisher := &fakePublisher{}
	orch := newOrchestrator(
		&stubRouter{result: routedExtraction()},
		&stubNormalizer{record: normalizedRecord(300)},
		&stubResolver{match: &dedup.Match{Existing: existing, Kind: dedup.MatchPrimary}},
		&fakeListingStore{}, &fakePayloadStore{}, publisher,
	)

	_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, events.ListingPriceChanged, event.EventType)
	assert.InDelta(t, 200, event.OldPrice, 0.001)
	assert.InDelta(t, 300, event.NewPrice, 0.001)
}

func TestIngest_PayloadWriteFailureIsNonFatal(t *testing.T) {
	store := &fakeListingStore{}
	orch := newOrchestrator(
		&stubRouter{result: routedExtraction()},
		&stubNormalizer{record: normalizedRecord(499.99)},
		&stubResolver{match: &dedup.Match{Kind: dedup.MatchNone}},
		store, &fakePayloadStore{err: errors.New("payload table full")}, &fakePublisher{},
	)

	_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
	require.NoError(t, err)
	assert.Len(t, store.created, 1)
}

func TestIngest_PayloadTruncatedToCeiling(t *testing.T) {
	routed := routedExtraction()
	routed.Extraction.Payload = make([]byte, 4096)

	payloads := &fakePayloadStore{}
	orch := newOrchestrator(
		&stubRouter{result: routed},
		&stubNormalizer{record: normalizedRecord(499.99)},
		&stubResolver{match: &dedup.Match{Kind: dedup.MatchNone}},
		&fakeListingStore{}, payloads, &fakePublisher{},
	)

	_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
	require.NoError(t, err)

	require.Len(t, payloads.inserted, 1)
	assert.Len(t, payloads.inserted[0].Payload, 1024)
}

func TestIngest_VersionConflictRetriesWithFreshCopy(t *testing.T) {
	existing := &domain.CatalogListing{
		ID:      "listing-1",
		Title:   "Dell Latitude 7420",
		Price:   499.99,
		Version: 1,
	}
	fresh := *existing
	fresh.Version = 2

	store := &fakeListingStore{
		conflicts: 1,
		byID:      map[string]*domain.CatalogListing{"listing-1": &fresh},
	}

	orch := newOrchestrator(
		&stubRouter{result: routedExtraction()},
		&stubNormalizer{record: normalizedRecord(499.99)},
		&stubResolver{match: &dedup.Match{Existing: existing, Kind: dedup.MatchPrimary}},
		store, &fakePayloadStore{}, &fakePublisher{},
	)

	_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/1", nil)
	require.NoError(t, err)

	require.Len(t, store.updated, 1)
	assert.Equal(t, 2, store.updated[0].Version)
}

func TestIngest_ExtractionFailurePropagates(t *testing.T) {
	orch := newOrchestrator(
		&stubRouter{err: domain.NewExtractionError("markup", domain.CodeItemNotFound, errors.New("gone"))},
		&stubNormalizer{},
		&stubResolver{},
		&fakeListingStore{}, &fakePayloadStore{}, &fakePublisher{},
	)

	var stages []ingest.Stage
	_, err := orch.Ingest(context.Background(), "https://www.ebay.com/itm/404", func(s ingest.Stage) {
		stages = append(stages, s)
	})
	require.Error(t, err)
	assert.Equal(t, domain.CodeItemNotFound, domain.CodeOf(err))
	assert.Equal(t, ingest.StageFailed, stages[len(stages)-1])
}
