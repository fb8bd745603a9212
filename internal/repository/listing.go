// Package repository contains the Postgres persistence layer for listings,
// raw payloads, and import jobs.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// ErrVersionConflict is returned by Update when the row's version no longer
// matches the caller's snapshot.
var ErrVersionConflict = errors.New("listing version conflict")

// ErrListingNotFound is returned when a listing id does not exist.
var ErrListingNotFound = errors.New("listing not found")

type ListingRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewListingRepository(db *sql.DB, log logger.Logger) *ListingRepository {
	return &ListingRepository{
		db:     db,
		logger: log,
	}
}

const listingColumns = `
	id, title, price, previous_price, currency, condition, images,
	seller, marketplace, vendor_item_id, content_hash,
	cpu_model, cpu_id, ram_gb, storage_gb, manufacturer, model_number,
	description, source_url, provenance, quality,
	last_seen_at, version, created_at, updated_at
`

func (r *ListingRepository) Create(ctx context.Context, listing *domain.CatalogListing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		listing.ID,
		listing.Title,
		listing.Price,
		listing.PreviousPrice,
		listing.Currency,
		string(listing.Condition),
		pq.Array(listing.Images),
		listing.Seller,
		listing.Marketplace,
		listing.VendorItemID,
		listing.ContentHash,
		listing.CPUModel,
		listing.CPUID,
		listing.RAMGB,
		listing.StorageGB,
		listing.Manufacturer,
		listing.ModelNumber,
		listing.Description,
		listing.SourceURL,
		listing.Provenance,
		string(listing.Quality),
		listing.LastSeenAt,
		listing.Version,
		listing.CreatedAt,
		listing.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}

	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.CatalogListing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query listing: %w", err)
	}
	return listing, nil
}

// GetByVendorKey looks a listing up by its marketplace-scoped vendor item id.
// A miss is (nil, nil).
func (r *ListingRepository) GetByVendorKey(ctx context.Context, marketplace, vendorItemID string) (*domain.CatalogListing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE marketplace = $1 AND vendor_item_id = $2
	`

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, marketplace, vendorItemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query listing by vendor key: %w", err)
	}
	return listing, nil
}

// GetByContentHash looks a listing up by content hash. A miss is (nil, nil).
func (r *ListingRepository) GetByContentHash(ctx context.Context, hash string) (*domain.CatalogListing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE content_hash = $1`

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query listing by content hash: %w", err)
	}
	return listing, nil
}

// Update writes the listing back with an optimistic version check. The WHERE
// clause matches the version the caller read; a zero-row update means another
// writer got there first and surfaces as ErrVersionConflict.
func (r *ListingRepository) Update(ctx context.Context, listing *domain.CatalogListing) error {
	query := `
		UPDATE listings
		SET title = $3, price = $4, previous_price = $5, currency = $6,
		    condition = $7, images = $8, seller = $9, marketplace = $10,
		    vendor_item_id = $11, content_hash = $12, cpu_model = $13,
		    cpu_id = $14, ram_gb = $15, storage_gb = $16, manufacturer = $17,
		    model_number = $18, description = $19, source_url = $20,
		    provenance = $21, quality = $22, last_seen_at = $23,
		    version = version + 1, updated_at = $24
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx,
		query,
		listing.ID,
		listing.Version,
		listing.Title,
		listing.Price,
		listing.PreviousPrice,
		listing.Currency,
		string(listing.Condition),
		pq.Array(listing.Images),
		listing.Seller,
		listing.Marketplace,
		listing.VendorItemID,
		listing.ContentHash,
		listing.CPUModel,
		listing.CPUID,
		listing.RAMGB,
		listing.StorageGB,
		listing.Manufacturer,
		listing.ModelNumber,
		listing.Description,
		listing.SourceURL,
		listing.Provenance,
		string(listing.Quality),
		listing.LastSeenAt,
		listing.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrVersionConflict
	}

	listing.Version++
	return nil
}

// ListingFilter holds pagination and filter params for List.
type ListingFilter struct {
	Limit       int
	Offset      int
	Marketplace string
	Condition   string
	Quality     string
	Search      string // ILIKE on title
}

// Count returns the number of listings matching the filter (ignores Limit/Offset).
func (r *ListingRepository) Count(ctx context.Context, filter ListingFilter) (int, error) {
	whereClause, args := buildListingWhere(filter)
	query := `SELECT COUNT(*) FROM listings WHERE 1=1` + whereClause

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// List returns listings matching the filter, newest first.
func (r *ListingRepository) List(ctx context.Context, filter ListingFilter) ([]domain.CatalogListing, error) {
	whereClause, whereArgs := buildListingWhere(filter)
	argCount := len(whereArgs)
	limitPlaceholder := strconv.Itoa(argCount + 1)
	offsetPlaceholder := strconv.Itoa(argCount + 2)

	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE 1=1` + whereClause + `
		ORDER BY updated_at DESC
		LIMIT $` + limitPlaceholder + ` OFFSET $` + offsetPlaceholder

	args := append(append([]any{}, whereArgs...), filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	listings := make([]domain.CatalogListing, 0)
	for rows.Next() {
		listing, scanErr := scanListing(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

func buildListingWhere(filter ListingFilter) (whereClause string, args []any) {
	var clauses []string
	args = make([]any, 0)
	pos := 1

	if filter.Marketplace != "" {
		clauses = append(clauses, fmt.Sprintf("marketplace = $%d", pos))
		args = append(args, filter.Marketplace)
		pos++
	}
	if filter.Condition != "" {
		clauses = append(clauses, fmt.Sprintf("condition = $%d", pos))
		args = append(args, filter.Condition)
		pos++
	}
	if filter.Quality != "" {
		clauses = append(clauses, fmt.Sprintf("quality = $%d", pos))
		args = append(args, filter.Quality)
		pos++
	}
	if filter.Search != "" {
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", pos))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(clauses) == 0 {
		return "", args
	}
	whereClause = " AND " + strings.Join(clauses, " AND ")
	return whereClause, args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*domain.CatalogListing, error) {
	var listing domain.CatalogListing
	var condition, quality string
	var images pq.StringArray

	err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Price,
		&listing.PreviousPrice,
		&listing.Currency,
		&condition,
		&images,
		&listing.Seller,
		&listing.Marketplace,
		&listing.VendorItemID,
		&listing.ContentHash,
		&listing.CPUModel,
		&listing.CPUID,
		&listing.RAMGB,
		&listing.StorageGB,
		&listing.Manufacturer,
		&listing.ModelNumber,
		&listing.Description,
		&listing.SourceURL,
		&listing.Provenance,
		&quality,
		&listing.LastSeenAt,
		&listing.Version,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	listing.Condition = domain.Condition(condition)
	listing.Quality = domain.Quality(quality)
	listing.Images = images
	return &listing, nil
}
