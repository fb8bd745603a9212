package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/testhelpers"
)

type fakeAdapter struct {
	name string
	ext  *RawExtraction
	err  error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Extract(_ context.Context, _ string) (*RawExtraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ext, nil
}

type recordingHealth struct {
	mu      sync.Mutex
	samples []string
}

func (r *recordingHealth) Observe(adapterName string, _ time.Duration, success bool, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "fail"
	if success {
		outcome = "ok"
	}
	r.samples = append(r.samples, adapterName+":"+outcome)
}

type recordingPayloads struct {
	mu       sync.Mutex
	attempts []string
}

func (r *recordingPayloads) StoreAttempt(_ context.Context, adapterName string, _ domain.PayloadKind, _ []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, adapterName)
}

func newTestRouter(health HealthSink, payloads PayloadSink, adapters ...*fakeAdapter) *Router {
	registry := NewRegistry()
	for i, a := range adapters {
		ad := a
		registry.Register(Registration{
			Name:     ad.name,
			Domains:  []string{"*"},
			Priority: (i + 1) * 10,
			Enabled:  true,
			Build:    func() Adapter { return ad },
		})
	}

	opts := []RouterOption{}
	if payloads != nil {
		opts = append(opts, WithPayloadSink(payloads))
	}
	return NewRouter(registry, NewGate(4, 0), nil, health, testhelpers.NewTestLogger(), opts...)
}

func TestRouter_FirstSuccessShortCircuits(t *testing.T) {
	health := &recordingHealth{}
	first := &fakeAdapter{name: "market_api", ext: &RawExtraction{Title: "Laptop", PriceRaw: "100"}}
	second := &fakeAdapter{name: "markup", ext: &RawExtraction{Title: "wrong"}}

	router := newTestRouter(health, nil, first, second)

	result, err := router.Extract(context.Background(), "https://example.com/item")
	require.NoError(t, err)
	assert.Equal(t, "market_api", result.Provenance)
	assert.Equal(t, "Laptop", result.Extraction.Title)
	assert.Equal(t, []string{"market_api:ok"}, health.samples)
}

func TestRouter_FallsThroughRetryableFailure(t *testing.T) {
	health := &recordingHealth{}
	first := &fakeAdapter{
		name: "market_api",
		err:  domain.NewExtractionError("market_api", domain.CodeTimeout, errors.New("deadline")),
	}
	second := &fakeAdapter{name: "markup", ext: &RawExtraction{Title: "Laptop", PriceRaw: "100"}}

	router := newTestRouter(health, nil, first, second)

	result, err := router.Extract(context.Background(), "https://example.com/item")
	require.NoError(t, err)
	assert.Equal(t, "markup", result.Provenance)
	assert.Equal(t, []string{"market_api:fail", "markup:ok"}, health.samples)
}

func TestRouter_NotFoundAbortsChain(t *testing.T) {
	health := &recordingHealth{}
	first := &fakeAdapter{
		name: "market_api",
		err:  domain.NewExtractionError("market_api", domain.CodeItemNotFound, errors.New("gone")),
	}
	second := &fakeAdapter{name: "markup", ext: &RawExtraction{Title: "should not run"}}

	router := newTestRouter(health, nil, first, second)

	_, err := router.Extract(context.Background(), "https://example.com/item")
	require.Error(t, err)
	assert.Equal(t, domain.CodeItemNotFound, domain.CodeOf(err))
	// The markup adapter must never have been attempted.
	assert.Equal(t, []string{"market_api:fail"}, health.samples)
}

func TestRouter_ExhaustionAggregatesAllAttempts(t *testing.T) {
	health := &recordingHealth{}
	first := &fakeAdapter{
		name: "market_api",
		err:  domain.NewExtractionError("market_api", domain.CodeTimeout, errors.New("deadline")),
	}
	second := &fakeAdapter{
		name: "markup",
		err:  domain.NewExtractionError("markup", domain.CodeInvalidResponse, errors.New("no markup")),
	}

	router := newTestRouter(health, nil, first, second)

	_, err := router.Extract(context.Background(), "https://example.com/item")
	require.Error(t, err)

	var agg *domain.AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Attempts, 2)
	assert.Equal(t, domain.CodeTimeout, agg.Attempts[0].Code)
	assert.Equal(t, domain.CodeInvalidResponse, agg.Attempts[1].Code)
}

func TestRouter_NoCandidatesIsAggregateFailure(t *testing.T) {
	router := newTestRouter(&recordingHealth{}, nil)

	_, err := router.Extract(context.Background(), "https://example.com/item")
	require.Error(t, err)
	assert.Equal(t, domain.CodeAllAdaptersFailed, domain.CodeOf(err))
}

func TestRouter_FailedAttemptPayloadRetained(t *testing.T) {
	payloads := &recordingPayloads{}
	first := &fakeAdapter{
		name: "markup",
		err: &domain.ExtractionError{
			Adapter:     "markup",
			Code:        domain.CodeInvalidResponse,
			Err:         errors.New("no markup"),
			Payload:     []byte("<html></html>"),
			PayloadKind: domain.PayloadUnstructured,
		},
	}

	router := newTestRouter(&recordingHealth{}, payloads, first)

	_, err := router.Extract(context.Background(), "https://example.com/item")
	require.Error(t, err)
	assert.Equal(t, []string{"markup"}, payloads.attempts)
}
