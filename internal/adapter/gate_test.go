package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_CapsInFlightPerAdapter(t *testing.T) {
	g := NewGate(2, 0)
	ctx := context.Background()

	release1, err := g.Acquire(ctx, "markup")
	require.NoError(t, err)
	release2, err := g.Acquire(ctx, "markup")
	require.NoError(t, err)

	// Third acquisition must block until a slot frees.
	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(blockedCtx, "markup")
	assert.Error(t, err)

	release1()
	release3, err := g.Acquire(ctx, "markup")
	require.NoError(t, err)

	release2()
	release3()
}

func TestGate_AdaptersHaveIndependentSlots(t *testing.T) {
	g := NewGate(1, 0)
	ctx := context.Background()

	releaseA, err := g.Acquire(ctx, "markup")
	require.NoError(t, err)

	// A saturated markup gate must not block the rendered adapter.
	releaseB, err := g.Acquire(ctx, "rendered")
	require.NoError(t, err)

	releaseA()
	releaseB()
}

func TestGate_PacesCallStarts(t *testing.T) {
	g := NewGate(1, 20) // one token burst, then 50ms between starts
	ctx := context.Background()

	release, err := g.Acquire(ctx, "markup")
	require.NoError(t, err)
	release()

	start := time.Now()
	release, err = g.Acquire(ctx, "markup")
	require.NoError(t, err)
	release()

	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestGate_CancelledPacingWaitFreesSlot(t *testing.T) {
	g := NewGate(1, 50)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "markup")
	require.NoError(t, err)
	release()

	// Cancel well before the pacer would admit the next call.
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Millisecond)
	defer cancel()
	_, err = g.Acquire(waitCtx, "markup")
	require.Error(t, err)

	// The slot held during the failed wait must be free again.
	release, err = g.Acquire(ctx, "markup")
	require.NoError(t, err)
	release()
}
