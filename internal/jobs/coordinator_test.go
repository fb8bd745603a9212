package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/ingest"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/repository"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/testhelpers"
)

// fakeIngestor fails URLs listed in failures and succeeds otherwise.
type fakeIngestor struct {
	mu       sync.Mutex
	failures map[string]error
	calls    []string
}

func (f *fakeIngestor) Ingest(_ context.Context, rawURL string, progress ingest.ProgressFunc) (*ingest.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	err := f.failures[rawURL]
	f.mu.Unlock()

	if progress != nil {
		progress(ingest.StageExtracting)
		progress(ingest.StagePersisting)
	}
	if err != nil {
		return nil, err
	}
	return &ingest.Result{
		ListingID:  "listing-for-" + rawURL,
		Provenance: "market_api",
		Quality:    domain.QualityFull,
		Created:    true,
	}, nil
}

// memoryJobStore keeps jobs and rows in maps and signals finalization so
// tests can wait on the supervisor goroutine.
type memoryJobStore struct {
	mu        sync.Mutex
	jobs      map[string]*domain.ImportJob
	rows      map[string]map[int]*domain.ImportJobRow
	progress  []int
	finalized chan domain.JobStatus
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{
		jobs:      make(map[string]*domain.ImportJob),
		rows:      make(map[string]map[int]*domain.ImportJobRow),
		finalized: make(chan domain.JobStatus, 1),
	}
}

func (m *memoryJobStore) CreateJob(_ context.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *job
	m.jobs[job.ID] = &stored
	m.rows[job.ID] = make(map[int]*domain.ImportJobRow)
	return nil
}

func (m *memoryJobStore) GetJob(_ context.Context, id string) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return job, nil
}

func (m *memoryJobStore) GetJobRows(_ context.Context, jobID string, _, _ int) ([]domain.ImportJobRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ImportJobRow, 0, len(m.rows[jobID]))
	for _, row := range m.rows[jobID] {
		out = append(out, *row)
	}
	return out, nil
}

func (m *memoryJobStore) MarkJobRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = domain.JobRunning
	return nil
}

func (m *memoryJobStore) UpdateJobProgress(_ context.Context, _ string, progressPct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, progressPct)
	return nil
}

func (m *memoryJobStore) CompleteRow(_ context.Context, row *domain.ImportJobRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.JobID][row.RowIndex] = row
	return nil
}

func (m *memoryJobStore) FinalizeJob(_ context.Context, id string, status domain.JobStatus) error {
	m.mu.Lock()
	m.jobs[id].Status = status
	m.mu.Unlock()
	m.finalized <- status
	return nil
}

func (m *memoryJobStore) CountRows(_ context.Context, jobID string) (repository.RowCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := repository.RowCounts{Total: m.jobs[jobID].TotalURLs}
	for _, row := range m.rows[jobID] {
		switch row.Status {
		case domain.RowComplete:
			counts.Complete++
		case domain.RowFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (m *memoryJobStore) waitFinalized(t *testing.T) domain.JobStatus {
	t.Helper()
	select {
	case status := <-m.finalized:
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("job never finalized")
		return ""
	}
}

func newTestCoordinator(t *testing.T, ingestor Ingestor, store JobStore) *Coordinator {
	t.Helper()
	pool, err := NewPool(4, testhelpers.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, pool.Start())
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	return NewCoordinator(context.Background(), ingestor, store, pool, testhelpers.NewTestLogger())
}

func TestRunSingleSync_ReturnsPipelineResult(t *testing.T) {
	ingestor := &fakeIngestor{}
	coord := newTestCoordinator(t, ingestor, newMemoryJobStore())

	result, err := coord.RunSingleSync(context.Background(), "https://www.ebay.com/itm/1")
	require.NoError(t, err)
	assert.Equal(t, "listing-for-https://www.ebay.com/itm/1", result.ListingID)
}

func TestSubmitSingle_CompletesJobWithMilestones(t *testing.T) {
	store := newMemoryJobStore()
	coord := newTestCoordinator(t, &fakeIngestor{}, store)

	job, err := coord.SubmitSingle(context.Background(), "https://www.ebay.com/itm/1", domain.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, job.Status)
	assert.Equal(t, domain.PriorityNormal, job.Priority)
	assert.Equal(t, 1, job.TotalURLs)

	assert.Equal(t, domain.JobComplete, store.waitFinalized(t))

	rows, err := coord.GetJobRows(context.Background(), job.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RowComplete, rows[0].Status)
	assert.NotEmpty(t, rows[0].ListingID)
	assert.Equal(t, "market_api", rows[0].Provenance)
	assert.Equal(t, domain.QualityFull, rows[0].Quality)

	store.mu.Lock()
	progress := append([]int(nil), store.progress...)
	store.mu.Unlock()
	assert.Equal(t, []int{25, 75}, progress)
}

func TestSubmitSingle_FailureFinalizesFailed(t *testing.T) {
	store := newMemoryJobStore()
	ingestor := &fakeIngestor{failures: map[string]error{
		"https://www.ebay.com/itm/404": domain.NewExtractionError("markup", domain.CodeItemNotFound, errors.New("gone")),
	}}
	coord := newTestCoordinator(t, ingestor, store)

	job, err := coord.SubmitSingle(context.Background(), "https://www.ebay.com/itm/404", domain.PriorityNormal)
	require.NoError(t, err)

	assert.Equal(t, domain.JobFailed, store.waitFinalized(t))

	rows, err := coord.GetJobRows(context.Background(), job.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RowFailed, rows[0].Status)
	assert.Equal(t, string(domain.CodeItemNotFound), rows[0].ErrorCode)
}

func TestSubmitSingle_RecordsPriority(t *testing.T) {
	store := newMemoryJobStore()
	coord := newTestCoordinator(t, &fakeIngestor{}, store)

	job, err := coord.SubmitSingle(context.Background(), "https://www.ebay.com/itm/1", domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, job.Priority)
	store.waitFinalized(t)

	// Omitted priority defaults to normal.
	job, err = coord.SubmitSingle(context.Background(), "https://www.ebay.com/itm/2", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityNormal, job.Priority)
	store.waitFinalized(t)
}

func TestSubmitBulk_MixedOutcomesArePartial(t *testing.T) {
	store := newMemoryJobStore()
	ingestor := &fakeIngestor{failures: map[string]error{
		"https://www.ebay.com/itm/2": domain.NewExtractionError("markup", domain.CodeTimeout, errors.New("deadline")),
		"https://www.ebay.com/itm/4": domain.NewExtractionError("markup", domain.CodeInvalidResponse, errors.New("no markup")),
	}}
	coord := newTestCoordinator(t, ingestor, store)

	urls := []string{
		"https://www.ebay.com/itm/1",
		"https://www.ebay.com/itm/2",
		"https://www.ebay.com/itm/3",
		"https://www.ebay.com/itm/4",
		"https://www.ebay.com/itm/5",
	}
	job, err := coord.SubmitBulk(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, 5, job.TotalURLs)

	assert.Equal(t, domain.JobPartial, store.waitFinalized(t))

	counts, err := store.CountRows(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Complete)
	assert.Equal(t, 2, counts.Failed)
}

func TestSubmitBulk_AllFailuresFinalizeFailed(t *testing.T) {
	store := newMemoryJobStore()
	ingestor := &fakeIngestor{failures: map[string]error{
		"https://www.ebay.com/itm/1": errors.New("boom"),
		"https://www.ebay.com/itm/2": errors.New("boom"),
	}}
	coord := newTestCoordinator(t, ingestor, store)

	_, err := coord.SubmitBulk(context.Background(), []string{
		"https://www.ebay.com/itm/1",
		"https://www.ebay.com/itm/2",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobFailed, store.waitFinalized(t))
}

func TestSubmitBulk_AllSuccessesFinalizeComplete(t *testing.T) {
	store := newMemoryJobStore()
	coord := newTestCoordinator(t, &fakeIngestor{}, store)

	_, err := coord.SubmitBulk(context.Background(), []string{
		"https://www.ebay.com/itm/1",
		"https://www.ebay.com/itm/2",
		"https://www.ebay.com/itm/3",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.JobComplete, store.waitFinalized(t))
}

func TestGetJobRows_UnknownJob(t *testing.T) {
	coord := newTestCoordinator(t, &fakeIngestor{}, newMemoryJobStore())

	_, err := coord.GetJobRows(context.Background(), "missing", 0, 10)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestBulkStatus(t *testing.T) {
	assert.Equal(t, domain.JobComplete, bulkStatus(repository.RowCounts{Total: 3, Complete: 3}))
	assert.Equal(t, domain.JobFailed, bulkStatus(repository.RowCounts{Total: 3, Complete: 0, Failed: 3}))
	assert.Equal(t, domain.JobPartial, bulkStatus(repository.RowCounts{Total: 3, Complete: 1, Failed: 2}))
}
