package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/testhelpers"
)

func TestNewPool_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewPool(0, testhelpers.NewTestLogger())
	assert.Error(t, err)

	_, err = NewPool(-1, testhelpers.NewTestLogger())
	assert.Error(t, err)
}

func TestPool_StartStopTransitions(t *testing.T) {
	pool, err := NewPool(2, testhelpers.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, PoolStateStopped, pool.State())

	require.NoError(t, pool.Start())
	assert.True(t, pool.IsRunning())
	assert.Error(t, pool.Start())

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, PoolStateStopped, pool.State())
	assert.Error(t, pool.Stop(context.Background()))
}

func TestPool_SubmitRequiresRunning(t *testing.T) {
	pool, err := NewPool(2, testhelpers.NewTestLogger())
	require.NoError(t, err)

	err = pool.Submit(context.Background(), func(context.Context) {})
	assert.Error(t, err)
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	pool, err := NewPool(4, testhelpers.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	var ran atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
			if ran.Add(1) == 8 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not finish")
	}

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int64(8), pool.TasksProcessed())
}

func TestPool_SubmitBlocksUntilSlotFrees(t *testing.T) {
	pool, err := NewPool(1, testhelpers.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = pool.Submit(ctx, func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Stop(context.Background()))
}

func TestPool_StopDrainsInFlightTasks(t *testing.T) {
	pool, err := NewPool(2, testhelpers.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	var finished atomic.Int32
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Add(1)
	}))

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, int32(1), finished.Load())
}
