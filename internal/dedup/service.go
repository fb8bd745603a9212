// Package dedup decides whether a normalized record matches an existing
// catalog listing.
package dedup

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// MatchKind says which strategy resolved the match.
type MatchKind string

const (
	MatchPrimary MatchKind = "primary"
	MatchHash    MatchKind = "hash"
	MatchNone    MatchKind = "none"
)

// ListingLookup is the slice of the catalog store dedup needs. A miss is
// (nil, nil).
type ListingLookup interface {
	GetByVendorKey(ctx context.Context, marketplace, vendorItemID string) (*domain.CatalogListing, error)
	GetByContentHash(ctx context.Context, hash string) (*domain.CatalogListing, error)
}

// Match is the dedup resolution for one record.
type Match struct {
	Existing *domain.CatalogListing
	Kind     MatchKind
	// ContentHash is populated only when the hash strategy ran.
	ContentHash string
}

// Service resolves records against the catalog using the vendor composite
// key first and a content hash as fallback. Hash equality is exact-match
// only; there is no fuzzy strategy.
type Service struct {
	listings ListingLookup
	logger   logger.Logger
}

func NewService(listings ListingLookup, log logger.Logger) *Service {
	return &Service{
		listings: listings,
		logger:   log,
	}
}

// Resolve finds the existing listing for record, if any. When both
// vendor_item_id and marketplace are present the composite key is
// authoritative and the hash is never computed.
func (s *Service) Resolve(ctx context.Context, record *domain.ListingRecord) (*Match, error) {
	if record.VendorItemID != "" && record.Marketplace != "" {
		existing, err := s.listings.GetByVendorKey(ctx, record.Marketplace, record.VendorItemID)
		if err != nil {
			return nil, fmt.Errorf("vendor key lookup: %w", err)
		}
		if existing != nil {
			return &Match{Existing: existing, Kind: MatchPrimary}, nil
		}
		return &Match{Kind: MatchNone}, nil
	}

	hash := domain.ContentHash(record.Title, record.Seller, record.Price)
	existing, err := s.listings.GetByContentHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("content hash lookup: %w", err)
	}
	if existing != nil {
		return &Match{Existing: existing, Kind: MatchHash, ContentHash: hash}, nil
	}
	return &Match{Kind: MatchNone, ContentHash: hash}, nil
}
