package dedup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/dedup"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/testhelpers"
)

type stubLookup struct {
	byVendor    *domain.CatalogListing
	byHash      *domain.CatalogListing
	vendorCalls int
	hashCalls   int
}

func (s *stubLookup) GetByVendorKey(_ context.Context, _, _ string) (*domain.CatalogListing, error) {
	s.vendorCalls++
	return s.byVendor, nil
}

func (s *stubLookup) GetByContentHash(_ context.Context, _ string) (*domain.CatalogListing, error) {
	s.hashCalls++
	return s.byHash, nil
}

func TestResolve_VendorKeyIsAuthoritative(t *testing.T) {
	existing := &domain.CatalogListing{ID: "listing-1"}
	lookup := &stubLookup{byVendor: existing}
	svc := dedup.NewService(lookup, testhelpers.NewTestLogger())

	match, err := svc.Resolve(context.Background(), &domain.ListingRecord{
		Title:        "Laptop",
		Price:        100,
		Marketplace:  "ebay.com",
		VendorItemID: "123",
	})
	require.NoError(t, err)

	assert.Equal(t, dedup.MatchPrimary, match.Kind)
	assert.Equal(t, existing, match.Existing)
	// The hash strategy must never run when the composite key is present.
	assert.Equal(t, 0, lookup.hashCalls)
	assert.Empty(t, match.ContentHash)
}

func TestResolve_VendorKeyMissDoesNotFallBackToHash(t *testing.T) {
	lookup := &stubLookup{byHash: &domain.CatalogListing{ID: "hash-match"}}
	svc := dedup.NewService(lookup, testhelpers.NewTestLogger())

	match, err := svc.Resolve(context.Background(), &domain.ListingRecord{
		Title:        "Laptop",
		Price:        100,
		Marketplace:  "ebay.com",
		VendorItemID: "123",
	})
	require.NoError(t, err)

	assert.Equal(t, dedup.MatchNone, match.Kind)
	assert.Nil(t, match.Existing)
	assert.Equal(t, 0, lookup.hashCalls)
}

func TestResolve_HashFallbackWithoutVendorKey(t *testing.T) {
	existing := &domain.CatalogListing{ID: "listing-2"}
	lookup := &stubLookup{byHash: existing}
	svc := dedup.NewService(lookup, testhelpers.NewTestLogger())

	match, err := svc.Resolve(context.Background(), &domain.ListingRecord{
		Title:  "Dell Latitude 7420",
		Seller: "techdeals",
		Price:  499.99,
	})
	require.NoError(t, err)

	assert.Equal(t, dedup.MatchHash, match.Kind)
	assert.Equal(t, existing, match.Existing)
	assert.Equal(t, domain.ContentHash("Dell Latitude 7420", "techdeals", 499.99), match.ContentHash)
	assert.Equal(t, 0, lookup.vendorCalls)
}

func TestResolve_NoMatchMeansNewListing(t *testing.T) {
	lookup := &stubLookup{}
	svc := dedup.NewService(lookup, testhelpers.NewTestLogger())

	match, err := svc.Resolve(context.Background(), &domain.ListingRecord{
		Title: "Laptop",
		Price: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, dedup.MatchNone, match.Kind)
	assert.Nil(t, match.Existing)
	assert.NotEmpty(t, match.ContentHash)
}
