package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

type JobRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewJobRepository(db *sql.DB, log logger.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: log,
	}
}

// terminalStatuses guards every status-mutating UPDATE: a job that reached a
// terminal state is authoritative and must never be overwritten.
const terminalStatuses = `('complete', 'partial', 'failed')`

// CreateJob inserts the job and its rows in one transaction.
func (r *JobRepository) CreateJob(ctx context.Context, job *domain.ImportJob) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("failed to rollback transaction",
					logger.Error(rbErr),
				)
			}
		}
	}()

	jobQuery := `
		INSERT INTO import_jobs (
			id, kind, status, priority, progress_pct, total_urls, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(ctx,
		jobQuery,
		job.ID,
		string(job.Kind),
		string(job.Status),
		string(job.Priority),
		job.ProgressPct,
		job.TotalURLs,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	rowQuery := `
		INSERT INTO import_job_rows (job_id, row_index, url, status)
		VALUES ($1, $2, $3, $4)
	`

	for i := range job.Rows {
		row := &job.Rows[i]
		if _, err = tx.ExecContext(ctx, rowQuery, job.ID, row.RowIndex, row.URL, string(row.Status)); err != nil {
			return fmt.Errorf("insert job row %d: %w", row.RowIndex, err)
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return err
	}

	return nil
}

// GetJob returns the job header without its rows.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	query := `
		SELECT id, kind, status, priority, progress_pct, total_urls, created_at, updated_at
		FROM import_jobs
		WHERE id = $1
	`

	var job domain.ImportJob
	var kind, status, priority string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID,
		&kind,
		&status,
		&priority,
		&job.ProgressPct,
		&job.TotalURLs,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	job.Priority = domain.JobPriority(priority)
	return &job, nil
}

// GetJobRows returns a page of rows ordered by row index.
func (r *JobRepository) GetJobRows(ctx context.Context, jobID string, offset, limit int) ([]domain.ImportJobRow, error) {
	query := `
		SELECT job_id, row_index, url, status, listing_id, provenance, quality, error_code, error
		FROM import_job_rows
		WHERE job_id = $1
		ORDER BY row_index
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query job rows: %w", err)
	}
	defer rows.Close()

	jobRows := make([]domain.ImportJobRow, 0)
	for rows.Next() {
		var row domain.ImportJobRow
		var status string
		var listingID, provenance, quality, errorCode, errorMsg sql.NullString

		scanErr := rows.Scan(
			&row.JobID,
			&row.RowIndex,
			&row.URL,
			&status,
			&listingID,
			&provenance,
			&quality,
			&errorCode,
			&errorMsg,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job row: %w", scanErr)
		}

		row.Status = domain.RowStatus(status)
		row.ListingID = listingID.String
		row.Provenance = provenance.String
		row.Quality = domain.Quality(quality.String)
		row.ErrorCode = errorCode.String
		row.Error = errorMsg.String
		jobRows = append(jobRows, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate job rows: %w", rowsErr)
	}

	return jobRows, nil
}

// MarkJobRunning transitions a queued job to running. A no-op when the job
// already left the queued state.
func (r *JobRepository) MarkJobRunning(ctx context.Context, id string) error {
	query := `
		UPDATE import_jobs
		SET status = 'running', updated_at = $2
		WHERE id = $1 AND status = 'queued'
	`

	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

// UpdateJobProgress raises the progress percentage. Progress is monotonic
// and terminal jobs are never touched, both enforced in the WHERE clause.
func (r *JobRepository) UpdateJobProgress(ctx context.Context, id string, progressPct int) error {
	query := `
		UPDATE import_jobs
		SET progress_pct = $2, updated_at = $3
		WHERE id = $1 AND progress_pct < $2 AND status NOT IN ` + terminalStatuses

	if _, err := r.db.ExecContext(ctx, query, id, progressPct, time.Now().UTC()); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// CompleteRow writes a row's terminal outcome. Rows that already reached a
// terminal state keep their first result.
func (r *JobRepository) CompleteRow(ctx context.Context, row *domain.ImportJobRow) error {
	query := `
		UPDATE import_job_rows
		SET status = $3, listing_id = $4, provenance = $5, quality = $6, error_code = $7, error = $8
		WHERE job_id = $1 AND row_index = $2 AND status NOT IN ('complete', 'failed')
	`

	var listingID, provenance, quality any
	if row.ListingID != "" {
		listingID = row.ListingID
	}
	if row.Provenance != "" {
		provenance = row.Provenance
	}
	if row.Quality != "" {
		quality = string(row.Quality)
	}

	_, err := r.db.ExecContext(ctx,
		query,
		row.JobID,
		row.RowIndex,
		string(row.Status),
		listingID,
		provenance,
		quality,
		row.ErrorCode,
		row.Error,
	)
	if err != nil {
		return fmt.Errorf("complete job row: %w", err)
	}
	return nil
}

// FinalizeJob writes the job's terminal status and 100% progress. The guard
// keeps an already-terminal job from being overwritten.
func (r *JobRepository) FinalizeJob(ctx context.Context, id string, status domain.JobStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize with non-terminal status %q", status)
	}

	query := `
		UPDATE import_jobs
		SET status = $2, progress_pct = 100, updated_at = $3
		WHERE id = $1 AND status NOT IN ` + terminalStatuses

	if _, err := r.db.ExecContext(ctx, query, id, string(status), time.Now().UTC()); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	return nil
}

// RowCounts aggregates row outcomes for a job.
type RowCounts struct {
	Total    int
	Complete int
	Failed   int
}

// CountRows returns the row outcome tally used to derive the job's terminal
// status.
func (r *JobRepository) CountRows(ctx context.Context, jobID string) (RowCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'complete'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM import_job_rows
		WHERE job_id = $1
	`

	var counts RowCounts
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&counts.Total,
		&counts.Complete,
		&counts.Failed,
	)
	if err != nil {
		return RowCounts{}, fmt.Errorf("count job rows: %w", err)
	}
	return counts, nil
}
