// Package jobs runs import jobs: a bounded worker pool executes URL tasks
// and the coordinator tracks job and row state in the database.
package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing tasks.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task is one unit of work, typically a single URL ingestion.
type Task func(ctx context.Context)

// defaultDrainTimeout bounds how long Stop waits for in-flight tasks.
const defaultDrainTimeout = 30 * time.Second

// Pool is a bounded worker pool. Submit blocks when every slot is busy, so
// a bulk job fans out at most size URLs at a time.
type Pool struct {
	size         int
	drainTimeout time.Duration
	logger       logger.Logger
	state        atomic.Int32
	sem          chan struct{} // Semaphore for bounded concurrency
	wg           sync.WaitGroup
	stopCh       chan struct{}

	tasksProcessed atomic.Int64
}

// NewPool creates a pool with the given concurrency.
func NewPool(size int, log logger.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be positive")
	}

	p := &Pool{
		size:         size,
		drainTimeout: defaultDrainTimeout,
		logger:       log,
		sem:          make(chan struct{}, size),
		stopCh:       make(chan struct{}),
	}

	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started",
		logger.Int("pool_size", p.size),
	)

	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight tasks.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	case <-time.After(p.drainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit runs task on a pool slot. Blocks until a slot frees up, the context
// is cancelled, or the pool starts draining.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	select {
	case p.sem <- struct{}{}:
		// Got a slot
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.sem // Release semaphore
			p.wg.Done()
		}()

		task(ctx)
		p.tasksProcessed.Add(1)
	}()

	return nil
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.State() == PoolStateRunning
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}

// BusyCount returns the number of occupied slots.
func (p *Pool) BusyCount() int {
	return len(p.sem)
}

// TasksProcessed returns the total number of completed tasks.
func (p *Pool) TasksProcessed() int64 {
	return p.tasksProcessed.Load()
}
