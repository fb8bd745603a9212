package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/httpx"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/retry"
)

// MarkupName identifies the structured-markup adapter.
const MarkupName = "markup"

const userAgent = "Mozilla/5.0 (compatible; North-Cloud-CatalogIngestor/1.0)"

// MarkupAdapter fetches page HTML directly (no rendering) and extracts
// embedded product markup. It works across most retailers without
// credentials but depends on the page exposing structured data.
type MarkupAdapter struct {
	cfg    config.AdapterConfig
	client *http.Client
	logger logger.Logger
}

func NewMarkupAdapter(cfg config.AdapterConfig, log logger.Logger) *MarkupAdapter {
	return &MarkupAdapter{
		cfg:    cfg,
		client: httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		logger: log,
	}
}

func (a *MarkupAdapter) Name() string {
	return MarkupName
}

func (a *MarkupAdapter) Extract(ctx context.Context, rawURL string) (*RawExtraction, error) {
	var html []byte
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: a.cfg.RetryCount + 1,
		IsRetryable: retryableAttempt,
	}, func() error {
		var fetchErr error
		html, fetchErr = a.fetchPage(ctx, rawURL)
		return fetchErr
	})
	if err != nil {
		return nil, asExtractionError(a.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         fmt.Errorf("parse HTML: %w", err),
			Payload:     html,
			PayloadKind: domain.PayloadUnstructured,
		}
	}

	ext, ok := parseProductDocument(doc, rawURL)
	if !ok {
		return nil, &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         errors.New("no product markup in page"),
			Payload:     html,
			PayloadKind: domain.PayloadUnstructured,
		}
	}

	if ext.Payload == nil {
		// Microdata and OpenGraph hits keep the fetched page as evidence.
		ext.Payload = html
		ext.PayloadKind = domain.PayloadUnstructured
	}

	return ext, nil
}

func (a *MarkupAdapter) fetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, domain.NewExtractionError(a.Name(), domain.CodeInvalidResponse, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(a.Name(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, domain.NewExtractionError(a.Name(), domain.CodeItemNotFound,
			fmt.Errorf("page returned status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewExtractionError(a.Name(), domain.CodeRateLimited,
			errors.New("page fetch rate limited"))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewExtractionError(a.Name(), domain.CodeInvalidResponse,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(a.Name(), err)
	}

	return body, nil
}
