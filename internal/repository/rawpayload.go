package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

type RawPayloadRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRawPayloadRepository(db *sql.DB, log logger.Logger) *RawPayloadRepository {
	return &RawPayloadRepository{
		db:     db,
		logger: log,
	}
}

// Insert stores one retained adapter response. ListingID is empty for
// payloads captured from failed attempts.
func (r *RawPayloadRepository) Insert(ctx context.Context, payload *domain.RawPayload) error {
	query := `
		INSERT INTO raw_payloads (
			id, listing_id, adapter_name, payload_kind, payload,
			created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var listingID any
	if payload.ListingID != "" {
		listingID = payload.ListingID
	}

	_, err := r.db.ExecContext(ctx,
		query,
		payload.ID,
		listingID,
		payload.AdapterName,
		string(payload.PayloadKind),
		payload.Payload,
		payload.CreatedAt,
		payload.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("insert raw payload: %w", err)
	}

	return nil
}

// GetByListing returns retained payloads for a listing, newest first.
func (r *RawPayloadRepository) GetByListing(ctx context.Context, listingID string) ([]domain.RawPayload, error) {
	query := `
		SELECT id, listing_id, adapter_name, payload_kind, payload,
		       created_at, expires_at
		FROM raw_payloads
		WHERE listing_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("query raw payloads: %w", err)
	}
	defer rows.Close()

	payloads := make([]domain.RawPayload, 0)
	for rows.Next() {
		var payload domain.RawPayload
		var rowListingID sql.NullString
		var kind string

		scanErr := rows.Scan(
			&payload.ID,
			&rowListingID,
			&payload.AdapterName,
			&kind,
			&payload.Payload,
			&payload.CreatedAt,
			&payload.ExpiresAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan raw payload: %w", scanErr)
		}

		payload.ListingID = rowListingID.String
		payload.PayloadKind = domain.PayloadKind(kind)
		payloads = append(payloads, payload)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate raw payloads: %w", rowsErr)
	}

	return payloads, nil
}

// DeleteExpired removes payloads past their expiry and returns the count.
func (r *RawPayloadRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM raw_payloads WHERE expires_at <= $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired payloads: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return deleted, nil
}
