// Package normalize turns raw adapter extractions into canonical listing
// records: price and currency parsing, condition mapping, free-text spec
// recovery, and component canonicalization.
package normalize

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/adapter"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/components"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// ComponentLookup resolves a free-text CPU model to a canonical component.
// A miss is (nil, nil).
type ComponentLookup interface {
	Lookup(ctx context.Context, freeText string) (*components.Component, error)
}

// Normalizer is a pure transformation from RawExtraction to ListingRecord,
// plus one outbound call for component canonicalization.
type Normalizer struct {
	lookup ComponentLookup
	logger logger.Logger
}

func NewNormalizer(lookup ComponentLookup, log logger.Logger) *Normalizer {
	return &Normalizer{
		lookup: lookup,
		logger: log,
	}
}

// Normalize builds the canonical record. Spec parsing and canonicalization
// are best-effort and never fail the pipeline; only a missing title or an
// unparseable price is fatal.
func (n *Normalizer) Normalize(ctx context.Context, raw *adapter.RawExtraction) (*domain.ListingRecord, error) {
	if raw.Title == "" {
		return nil, fmt.Errorf("extraction has no title")
	}

	price, currencyHint, err := ParsePrice(raw.PriceRaw)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", raw.PriceRaw, err)
	}

	currency := raw.Currency
	if currency == "" {
		currency = currencyHint
	}

	record := &domain.ListingRecord{
		Title:        raw.Title,
		Price:        price,
		Currency:     NormalizeCurrency(currency),
		Condition:    MapCondition(raw.ConditionRaw),
		Images:       raw.Images,
		Seller:       raw.Seller,
		Marketplace:  raw.Marketplace,
		VendorItemID: raw.VendorItemID,
		Manufacturer: raw.Manufacturer,
		ModelNumber:  raw.ModelNumber,
		CPUModel:     raw.CPUModel,
		RAMGB:        raw.RAMGB,
		StorageGB:    raw.StorageGB,
		Description:  raw.Description,
		SourceURL:    raw.SourceURL,
	}

	n.fillFromFreeText(record, raw)
	n.canonicalize(ctx, record)
	record.Quality = computeQuality(record)

	return record, nil
}

// fillFromFreeText parses title+description for specs the adapter did not
// supply directly. Adapter-supplied values always win.
func (n *Normalizer) fillFromFreeText(record *domain.ListingRecord, raw *adapter.RawExtraction) {
	specs := ParseSpecs(raw.Title + " " + raw.Description)

	if record.Manufacturer == "" {
		record.Manufacturer = specs.Manufacturer
	}
	if record.ModelNumber == "" {
		record.ModelNumber = specs.ModelNumber
	}
	if record.CPUModel == "" {
		record.CPUModel = specs.CPUModel
	}
	if record.RAMGB == 0 {
		record.RAMGB = specs.RAMGB
	}
	if record.StorageGB == 0 {
		record.StorageGB = specs.StorageGB
	}
}

// canonicalize resolves a detected CPU model against the component catalog.
// On a miss or lookup failure the raw string is retained and CPUID stays
// empty.
func (n *Normalizer) canonicalize(ctx context.Context, record *domain.ListingRecord) {
	if record.CPUModel == "" || n.lookup == nil {
		return
	}

	component, err := n.lookup.Lookup(ctx, record.CPUModel)
	if err != nil {
		n.logger.Warn("Component lookup failed",
			logger.String("cpu_model", record.CPUModel),
			logger.Error(err),
		)
		return
	}
	if component == nil {
		n.logger.Debug("Component lookup miss",
			logger.String("cpu_model", record.CPUModel),
		)
		return
	}

	record.CPUID = component.ID
}

// computeQuality: full iff title, price, condition, and at least one image
// are present and, when a CPU model was detected, it canonicalized.
func computeQuality(record *domain.ListingRecord) domain.Quality {
	if record.Title == "" || record.Price <= 0 || !record.Condition.IsValid() || len(record.Images) == 0 {
		return domain.QualityPartial
	}
	if record.CPUModel != "" && record.CPUID == "" {
		return domain.QualityPartial
	}
	return domain.QualityFull
}
