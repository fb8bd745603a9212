package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// HealthSink receives one sample per adapter attempt, success or failure.
type HealthSink interface {
	Observe(adapterName string, latency time.Duration, success bool, completeness float64)
}

// PayloadSink retains upstream responses from failed attempts. Best-effort;
// implementations must never block the extraction path on errors.
type PayloadSink interface {
	StoreAttempt(ctx context.Context, adapterName string, kind domain.PayloadKind, payload []byte)
}

// Result is a successful routed extraction.
type Result struct {
	Extraction *RawExtraction
	Provenance string
	Latency    time.Duration
}

// Router selects candidate adapters for a URL and drives the fallback loop:
// candidates are tried in ascending priority order until one succeeds, a
// non-retryable error aborts the chain, or every candidate is exhausted.
type Router struct {
	registry *Registry
	gate     *Gate
	timeouts map[string]time.Duration
	health   HealthSink
	payloads PayloadSink
	logger   logger.Logger
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithPayloadSink wires failed-attempt payload retention.
func WithPayloadSink(sink PayloadSink) RouterOption {
	return func(r *Router) { r.payloads = sink }
}

// NewRouter creates a router over the registration table. timeouts maps
// adapter name to its configured per-call deadline.
func NewRouter(
	registry *Registry,
	gate *Gate,
	timeouts map[string]time.Duration,
	health HealthSink,
	log logger.Logger,
	opts ...RouterOption,
) *Router {
	r := &Router{
		registry: registry,
		gate:     gate,
		timeouts: timeouts,
		health:   health,
		logger:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract resolves rawURL to a raw extraction via the fallback chain.
func (r *Router) Extract(ctx context.Context, rawURL string) (*Result, error) {
	candidates := r.registry.CandidatesFor(rawURL)

	agg := &domain.AggregateError{URL: rawURL}

	for _, reg := range candidates {
		result, err := r.attempt(ctx, reg, rawURL)
		if err == nil {
			r.logger.Info("Extraction succeeded",
				logger.String("url", rawURL),
				logger.String("adapter", reg.Name),
				logger.Duration("latency", result.Latency),
			)
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, domain.NewExtractionError(reg.Name, domain.CodeTimeout, ctx.Err())
		}

		var exErr *domain.ExtractionError
		if !errors.As(err, &exErr) {
			exErr = domain.NewExtractionError(reg.Name, domain.CodeInvalidResponse, err)
		}

		// A definitive answer (item gone upstream, adapter shut off) must
		// surface as-is, not be masked behind an aggregate failure.
		if !exErr.Retryable() {
			r.logger.Warn("Extraction aborted",
				logger.String("url", rawURL),
				logger.String("adapter", reg.Name),
				logger.String("code", string(exErr.Code)),
			)
			return nil, exErr
		}

		r.logger.Warn("Adapter attempt failed, trying next candidate",
			logger.String("url", rawURL),
			logger.String("adapter", reg.Name),
			logger.String("code", string(exErr.Code)),
			logger.Error(exErr.Err),
		)

		agg.Attempts = append(agg.Attempts, domain.AttemptError{
			Adapter: reg.Name,
			Code:    exErr.Code,
			Message: exErr.Error(),
		})
	}

	return nil, agg
}

func (r *Router) attempt(ctx context.Context, reg Registration, rawURL string) (*Result, error) {
	release, err := r.gate.Acquire(ctx, reg.Name)
	if err != nil {
		return nil, domain.NewExtractionError(reg.Name, domain.CodeTimeout, err)
	}
	defer release()

	attemptCtx := ctx
	if timeout, ok := r.timeouts[reg.Name]; ok && timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ad := reg.Build()

	start := time.Now()
	ext, err := ad.Extract(attemptCtx, rawURL)
	latency := time.Since(start)

	if err != nil {
		r.health.Observe(reg.Name, latency, false, 0)
		r.retainFailedPayload(ctx, reg.Name, err)
		return nil, err
	}

	r.health.Observe(reg.Name, latency, true, ext.FieldCompleteness())

	return &Result{
		Extraction: ext,
		Provenance: reg.Name,
		Latency:    latency,
	}, nil
}

// retainFailedPayload stores the upstream body attached to a typed failure,
// if any. Payloads from failed attempts predate listing creation.
func (r *Router) retainFailedPayload(ctx context.Context, adapterName string, err error) {
	if r.payloads == nil {
		return
	}
	var exErr *domain.ExtractionError
	if errors.As(err, &exErr) && len(exErr.Payload) > 0 {
		r.payloads.StoreAttempt(ctx, adapterName, exErr.PayloadKind, exErr.Payload)
	}
}
