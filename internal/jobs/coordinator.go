package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/ingest"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
)

// Ingestor runs the pipeline for one URL.
type Ingestor interface {
	Ingest(ctx context.Context, rawURL string, progress ingest.ProgressFunc) (*ingest.Result, error)
}

// JobStore is the persistence surface the coordinator needs.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) error
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)
	GetJobRows(ctx context.Context, jobID string, offset, limit int) ([]domain.ImportJobRow, error)
	MarkJobRunning(ctx context.Context, id string) error
	UpdateJobProgress(ctx context.Context, id string, progressPct int) error
	CompleteRow(ctx context.Context, row *domain.ImportJobRow) error
	FinalizeJob(ctx context.Context, id string, status domain.JobStatus) error
	CountRows(ctx context.Context, jobID string) (repository.RowCounts, error)
}

// stageProgress maps pipeline stages to single-job progress milestones.
var stageProgress = map[ingest.Stage]int{
	ingest.StageRouting:     10,
	ingest.StageExtracting:  25,
	ingest.StageNormalizing: 55,
	ingest.StagePersisting:  75,
	ingest.StageEventing:    90,
}

// bulkProgressCap keeps bulk progress below 100 until finalization writes it.
const bulkProgressCap = 99

// Coordinator owns job lifecycle: it creates jobs, fans URL tasks out onto
// the pool, records row outcomes, and derives the terminal job status.
type Coordinator struct {
	ingestor Ingestor
	store    JobStore
	pool     *Pool
	logger   logger.Logger

	// baseCtx detaches job execution from the submitting HTTP request; it is
	// cancelled only on shutdown.
	baseCtx context.Context
}

func NewCoordinator(baseCtx context.Context, ingestor Ingestor, store JobStore, pool *Pool, log logger.Logger) *Coordinator {
	return &Coordinator{
		ingestor: ingestor,
		store:    store,
		pool:     pool,
		logger:   log,
		baseCtx:  baseCtx,
	}
}

// RunSingleSync runs one URL inline and returns the pipeline result. No job
// record is created.
func (c *Coordinator) RunSingleSync(ctx context.Context, rawURL string) (*ingest.Result, error) {
	return c.ingestor.Ingest(ctx, rawURL, nil)
}

// SubmitSingle creates a one-row job and queues it on the pool. The returned
// job is in the queued state; callers poll it by id. An empty priority
// defaults to normal.
func (c *Coordinator) SubmitSingle(ctx context.Context, rawURL string, priority domain.JobPriority) (*domain.ImportJob, error) {
	if priority == "" {
		priority = domain.PriorityNormal
	}
	job := newJob(domain.JobKindSingle, []string{rawURL}, priority)

	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := c.pool.Submit(c.baseCtx, func(taskCtx context.Context) {
		c.runSingle(taskCtx, job.ID, rawURL)
	}); err != nil {
		c.failJob(job.ID, fmt.Errorf("submit to pool: %w", err))
		return nil, fmt.Errorf("submit to pool: %w", err)
	}

	return job, nil
}

// SubmitBulk creates a job over the parsed URL list and fans its rows out on
// the pool from a supervisor goroutine.
func (c *Coordinator) SubmitBulk(ctx context.Context, urls []string) (*domain.ImportJob, error) {
	job := newJob(domain.JobKindBulk, urls, domain.PriorityNormal)

	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	go c.runBulk(job.ID, urls)

	return job, nil
}

// GetJob returns the job header.
func (c *Coordinator) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	return c.store.GetJob(ctx, id)
}

// GetJobRows returns a page of per-URL outcomes.
func (c *Coordinator) GetJobRows(ctx context.Context, jobID string, offset, limit int) ([]domain.ImportJobRow, error) {
	if _, err := c.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return c.store.GetJobRows(ctx, jobID, offset, limit)
}

// CountJobRows returns the row outcome tally for a job.
func (c *Coordinator) CountJobRows(ctx context.Context, jobID string) (repository.RowCounts, error) {
	return c.store.CountRows(ctx, jobID)
}

func newJob(kind domain.JobKind, urls []string, priority domain.JobPriority) *domain.ImportJob {
	now := time.Now().UTC()
	job := &domain.ImportJob{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    domain.JobQueued,
		Priority:  priority,
		TotalURLs: len(urls),
		Rows:      make([]domain.ImportJobRow, 0, len(urls)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, rawURL := range urls {
		job.Rows = append(job.Rows, domain.ImportJobRow{
			JobID:    job.ID,
			RowIndex: i,
			URL:      rawURL,
			Status:   domain.RowQueued,
		})
	}
	return job
}

// runSingle executes a one-row job, reporting stage milestones as progress.
func (c *Coordinator) runSingle(ctx context.Context, jobID, rawURL string) {
	if err := c.store.MarkJobRunning(ctx, jobID); err != nil {
		c.logger.Error("Failed to mark job running",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
	}

	progress := func(stage ingest.Stage) {
		pct, ok := stageProgress[stage]
		if !ok {
			return
		}
		if err := c.store.UpdateJobProgress(ctx, jobID, pct); err != nil {
			c.logger.Warn("Failed to update job progress",
				logger.String("job_id", jobID),
				logger.Error(err),
			)
		}
	}

	result, err := c.ingestor.Ingest(ctx, rawURL, progress)
	c.completeRow(ctx, jobID, 0, rawURL, result, err)

	status := domain.JobComplete
	if err != nil {
		status = domain.JobFailed
	}
	c.finalize(ctx, jobID, status)
}

// runBulk fans rows out on the pool and finalizes the job from the tally of
// row outcomes.
func (c *Coordinator) runBulk(jobID string, urls []string) {
	ctx := c.baseCtx

	if err := c.store.MarkJobRunning(ctx, jobID); err != nil {
		c.logger.Error("Failed to mark job running",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
	}

	var wg sync.WaitGroup
	var completed int
	var mu sync.Mutex

	for i, rawURL := range urls {
		rowIndex, rowURL := i, rawURL

		wg.Add(1)
		err := c.pool.Submit(ctx, func(taskCtx context.Context) {
			defer wg.Done()

			result, ingestErr := c.ingestor.Ingest(taskCtx, rowURL, nil)
			c.completeRow(taskCtx, jobID, rowIndex, rowURL, result, ingestErr)

			mu.Lock()
			completed++
			pct := completed * 100 / len(urls)
			mu.Unlock()

			if pct > bulkProgressCap {
				pct = bulkProgressCap
			}
			if progressErr := c.store.UpdateJobProgress(taskCtx, jobID, pct); progressErr != nil {
				c.logger.Warn("Failed to update job progress",
					logger.String("job_id", jobID),
					logger.Error(progressErr),
				)
			}
		})
		if err != nil {
			// Pool rejected the task, usually because we are shutting down.
			// The row stays queued and the job finalizes from what did run.
			wg.Done()
			c.logger.Warn("Bulk row not scheduled",
				logger.String("job_id", jobID),
				logger.Int("row_index", rowIndex),
				logger.Error(err),
			)
		}
	}

	wg.Wait()

	counts, err := c.store.CountRows(ctx, jobID)
	if err != nil {
		c.logger.Error("Failed to count job rows",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		c.finalize(ctx, jobID, domain.JobFailed)
		return
	}

	c.finalize(ctx, jobID, bulkStatus(counts))
}

// bulkStatus derives the terminal job status from row outcomes: complete when
// every row succeeded, failed when none did, partial otherwise.
func bulkStatus(counts repository.RowCounts) domain.JobStatus {
	switch {
	case counts.Complete == counts.Total:
		return domain.JobComplete
	case counts.Complete == 0:
		return domain.JobFailed
	default:
		return domain.JobPartial
	}
}

func (c *Coordinator) completeRow(ctx context.Context, jobID string, rowIndex int, rawURL string, result *ingest.Result, err error) {
	row := &domain.ImportJobRow{
		JobID:    jobID,
		RowIndex: rowIndex,
		URL:      rawURL,
	}

	if err != nil {
		row.Status = domain.RowFailed
		row.ErrorCode = string(domain.CodeOf(err))
		row.Error = err.Error()
	} else {
		row.Status = domain.RowComplete
		row.ListingID = result.ListingID
		row.Provenance = result.Provenance
		row.Quality = result.Quality
	}

	if storeErr := c.store.CompleteRow(ctx, row); storeErr != nil {
		c.logger.Error("Failed to record row outcome",
			logger.String("job_id", jobID),
			logger.Int("row_index", rowIndex),
			logger.Error(storeErr),
		)
	}
}

func (c *Coordinator) finalize(ctx context.Context, jobID string, status domain.JobStatus) {
	if err := c.store.FinalizeJob(ctx, jobID, status); err != nil {
		c.logger.Error("Failed to finalize job",
			logger.String("job_id", jobID),
			logger.String("status", string(status)),
			logger.Error(err),
		)
	}
}

func (c *Coordinator) failJob(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.logger.Error("Job failed before execution",
		logger.String("job_id", jobID),
		logger.Error(cause),
	)
	c.finalize(ctx, jobID, domain.JobFailed)
}
