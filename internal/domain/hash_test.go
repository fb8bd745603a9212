package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash_StableAcrossCosmeticVariation(t *testing.T) {
	a := ContentHash("Dell Latitude 7420 i7", "techdeals", 499.99)
	b := ContentHash("  dell   LATITUDE 7420   i7 ", "TechDeals", 499.99)

	assert.Equal(t, a, b)
}

func TestContentHash_PriceChangesHash(t *testing.T) {
	a := ContentHash("Dell Latitude 7420 i7", "techdeals", 499.99)
	b := ContentHash("Dell Latitude 7420 i7", "techdeals", 489.99)

	assert.NotEqual(t, a, b)
}

func TestContentHash_SellerChangesHash(t *testing.T) {
	a := ContentHash("Dell Latitude 7420 i7", "techdeals", 499.99)
	b := ContentHash("Dell Latitude 7420 i7", "othershop", 499.99)

	assert.NotEqual(t, a, b)
}

func TestContentHash_FieldsDoNotBleedAcrossSeparator(t *testing.T) {
	// Title ending in what looks like a seller must not collide with the
	// seller field proper.
	a := ContentHash("laptop techdeals", "", 100)
	b := ContentHash("laptop", "techdeals", 100)

	assert.NotEqual(t, a, b)
}
