// Package adapter implements the extraction strategies for marketplace
// product URLs and the priority-ordered router that drives them.
package adapter

import (
	"context"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
)

// RawExtraction is one adapter's output before normalization. String fields
// hold source values verbatim; the normalizer owns all mapping.
type RawExtraction struct {
	Title        string
	PriceRaw     string
	Currency     string
	ConditionRaw string
	Images       []string
	Seller       string
	Marketplace  string
	VendorItemID string
	Manufacturer string
	ModelNumber  string
	CPUModel     string
	RAMGB        int
	StorageGB    int
	Description  string
	SourceURL    string

	// Payload is the raw upstream response, retained for debugging.
	Payload     []byte
	PayloadKind domain.PayloadKind
}

// completenessFields is the number of "should populate" fields scored by
// FieldCompleteness.
const completenessFields = 7

// FieldCompleteness returns the fraction (0..1) of expected fields the
// extraction populated. Feeds adapter health reporting.
func (e *RawExtraction) FieldCompleteness() float64 {
	populated := 0
	if e.Title != "" {
		populated++
	}
	if e.PriceRaw != "" {
		populated++
	}
	if e.ConditionRaw != "" {
		populated++
	}
	if len(e.Images) > 0 {
		populated++
	}
	if e.Seller != "" {
		populated++
	}
	if e.VendorItemID != "" {
		populated++
	}
	if e.Description != "" {
		populated++
	}
	return float64(populated) / float64(completenessFields)
}

// Adapter is one extraction strategy bound to a class of source URL.
// Extract returns a raw extraction or a typed *domain.ExtractionError.
// Construction never fails; missing configuration surfaces as
// CONFIGURATION_ERROR at extraction time so the router can fall through.
type Adapter interface {
	Name() string
	Extract(ctx context.Context, rawURL string) (*RawExtraction, error)
}
