// Package metrics exports Prometheus metrics for adapter attempts and keeps
// a rolling window of per-adapter health samples for the API.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
)

// window is how far back Samples aggregates attempts.
const window = 15 * time.Minute

// outcome label values for the attempts counter.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type observation struct {
	at           time.Time
	latency      time.Duration
	success      bool
	completeness float64
}

// Aggregator implements the adapter health sink. Every attempt increments the
// Prometheus counters and joins the in-memory rolling window the health
// endpoint reads from.
type Aggregator struct {
	attemptsTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec

	mu           sync.Mutex
	observations map[string][]observation
	now          func() time.Time
}

// NewAggregator registers the metrics on reg. Pass prometheus.DefaultRegisterer
// in production; tests use their own registry to avoid duplicate registration.
func NewAggregator(reg prometheus.Registerer) *Aggregator {
	factory := promauto.With(reg)

	return &Aggregator{
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestor_adapter_attempts_total",
			Help: "Total adapter extraction attempts by outcome",
		}, []string{"adapter", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestor_adapter_latency_seconds",
			Help:    "Adapter extraction attempt latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"adapter"}),
		observations: make(map[string][]observation),
		now:          time.Now,
	}
}

// Observe records one adapter attempt.
func (a *Aggregator) Observe(adapterName string, latency time.Duration, success bool, completeness float64) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	a.attemptsTotal.WithLabelValues(adapterName, outcome).Inc()
	a.latency.WithLabelValues(adapterName).Observe(latency.Seconds())

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	obs := append(a.observations[adapterName], observation{
		at:           now,
		latency:      latency,
		success:      success,
		completeness: completeness,
	})
	a.observations[adapterName] = pruneBefore(obs, now.Add(-window))
}

// Samples returns the rolling-window aggregate per adapter, sorted by name.
func (a *Aggregator) Samples() []domain.AdapterHealthSample {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	cutoff := now.Add(-window)

	samples := make([]domain.AdapterHealthSample, 0, len(a.observations))
	for name, obs := range a.observations {
		obs = pruneBefore(obs, cutoff)
		a.observations[name] = obs
		if len(obs) == 0 {
			continue
		}
		samples = append(samples, aggregate(name, obs, now))
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].AdapterName < samples[j].AdapterName
	})
	return samples
}

func aggregate(name string, obs []observation, now time.Time) domain.AdapterHealthSample {
	sample := domain.AdapterHealthSample{
		AdapterName: name,
		MeasuredAt:  now,
	}

	latencies := make([]time.Duration, 0, len(obs))
	var completenessSum float64
	var successes int

	for _, o := range obs {
		latencies = append(latencies, o.latency)
		if o.success {
			sample.SuccessCount++
			completenessSum += o.completeness
			successes++
		} else {
			sample.FailureCount++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	sample.P50LatencyMS = percentile(latencies, 50).Milliseconds()
	sample.P95LatencyMS = percentile(latencies, 95).Milliseconds()

	if successes > 0 {
		sample.FieldCompletenessPct = completenessSum / float64(successes) * 100
	}

	return sample
}

// percentile returns the nearest-rank percentile of sorted durations.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func pruneBefore(obs []observation, cutoff time.Time) []observation {
	idx := 0
	for idx < len(obs) && obs[idx].at.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return obs
	}
	return append(obs[:0:0], obs[idx:]...)
}
