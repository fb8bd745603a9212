package handlers

import (
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/testhelpers"
)

var listingColumns = []string{
	"id", "title", "price", "previous_price", "currency", "condition", "images",
	"seller", "marketplace", "vendor_item_id", "content_hash",
	"cpu_model", "cpu_id", "ram_gb", "storage_gb", "manufacturer", "model_number",
	"description", "source_url", "provenance", "quality",
	"last_seen_at", "version", "created_at", "updated_at",
}

func listingRow(now time.Time) []driver.Value {
	return []driver.Value{
		"listing-1", "Dell Latitude 7420", 499.99, nil, "USD", "used",
		[]byte(`{https://img.example.com/1.jpg}`),
		"techdeals", "ebay.com", "123", "abc123",
		"i7-1185G7", "cpu-i7-1185g7", 16, 512, "Dell", "Latitude 7420",
		"Business laptop", "https://www.ebay.com/itm/123", "market_api", "full",
		now, 1, now, now,
	}
}

func newListingRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewListingRepository(db, testhelpers.NewTestLogger())
	handler := NewListingHandler(repo, testhelpers.NewTestLogger())

	router := gin.New()
	router.GET("/listings", handler.List)
	router.GET("/listings/:id", handler.GetByID)
	return router, mock
}

func TestListingGetByID(t *testing.T) {
	router, mock := newListingRouter(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM listings WHERE id =").
		WithArgs("listing-1").
		WillReturnRows(sqlmock.NewRows(listingColumns).AddRow(listingRow(now)...))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/listings/listing-1", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var listing domain.CatalogListing
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, "Dell Latitude 7420", listing.Title)
	assert.Equal(t, domain.QualityFull, listing.Quality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingGetByID_NotFound(t *testing.T) {
	router, mock := newListingRouter(t)

	mock.ExpectQuery("FROM listings WHERE id =").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(listingColumns))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/listings/missing", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingList_WithFilters(t *testing.T) {
	router, mock := newListingRouter(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM listings").
		WithArgs("ebay.com", 100, 0).
		WillReturnRows(sqlmock.NewRows(listingColumns).AddRow(listingRow(now)...))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listings`).
		WithArgs("ebay.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/listings?marketplace=ebay.com", http.NoBody)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Listings []domain.CatalogListing `json:"listings"`
		Total    int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Listings, 1)
	assert.Equal(t, "listing-1", body.Listings[0].ID)
	assert.Equal(t, 1, body.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
