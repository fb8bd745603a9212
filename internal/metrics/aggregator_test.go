package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(prometheus.NewRegistry())
}

func TestObserveAndSamples(t *testing.T) {
	agg := newTestAggregator()

	agg.Observe("market_api", 100*time.Millisecond, true, 0.9)
	agg.Observe("market_api", 200*time.Millisecond, true, 0.7)
	agg.Observe("market_api", 500*time.Millisecond, false, 0)
	agg.Observe("markup", 50*time.Millisecond, true, 1.0)

	samples := agg.Samples()
	require.Len(t, samples, 2)

	// Sorted by adapter name.
	assert.Equal(t, "market_api", samples[0].AdapterName)
	assert.Equal(t, "markup", samples[1].AdapterName)

	market := samples[0]
	assert.Equal(t, int64(2), market.SuccessCount)
	assert.Equal(t, int64(1), market.FailureCount)
	// Completeness averages over successes only.
	assert.InDelta(t, 80.0, market.FieldCompletenessPct, 0.001)

	markup := samples[1]
	assert.Equal(t, int64(1), markup.SuccessCount)
	assert.InDelta(t, 100.0, markup.FieldCompletenessPct, 0.001)
}

func TestPercentilesNearestRank(t *testing.T) {
	agg := newTestAggregator()

	for i := 1; i <= 100; i++ {
		agg.Observe("markup", time.Duration(i)*time.Millisecond, true, 1.0)
	}

	samples := agg.Samples()
	require.Len(t, samples, 1)

	assert.Equal(t, int64(50), samples[0].P50LatencyMS)
	assert.Equal(t, int64(95), samples[0].P95LatencyMS)
}

func TestSamplesDropObservationsOutsideWindow(t *testing.T) {
	agg := newTestAggregator()

	current := time.Now()
	agg.now = func() time.Time { return current }

	agg.Observe("markup", 50*time.Millisecond, true, 1.0)

	// Jump past the window; the sole observation ages out.
	current = current.Add(window + time.Minute)
	assert.Empty(t, agg.Samples())
}

func TestSamplesKeepRecentObservations(t *testing.T) {
	agg := newTestAggregator()

	current := time.Now()
	agg.now = func() time.Time { return current }

	agg.Observe("markup", 50*time.Millisecond, true, 1.0)
	current = current.Add(10 * time.Minute)
	agg.Observe("markup", 70*time.Millisecond, false, 0)

	// Six more minutes pushes only the first observation past the cutoff.
	current = current.Add(6 * time.Minute)
	samples := agg.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, int64(0), samples[0].SuccessCount)
	assert.Equal(t, int64(1), samples[0].FailureCount)
}

func TestPercentileEmpty(t *testing.T) {
	assert.Equal(t, time.Duration(0), percentile(nil, 95))
}
