package adapter

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/retry"
)

// RenderedName identifies the rendered-HTML adapter.
const RenderedName = "rendered"

// Renderer is the browser-automation collaborator: it executes page scripts
// and returns the rendered HTML.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// RenderedAdapter is the fallback of last resort for pages that only expose
// product data after script execution. Lowest priority due to cost and
// latency.
type RenderedAdapter struct {
	cfg      config.AdapterConfig
	renderer Renderer
	logger   logger.Logger
}

func NewRenderedAdapter(cfg config.AdapterConfig, renderer Renderer, log logger.Logger) *RenderedAdapter {
	return &RenderedAdapter{
		cfg:      cfg,
		renderer: renderer,
		logger:   log,
	}
}

func (a *RenderedAdapter) Name() string {
	return RenderedName
}

func (a *RenderedAdapter) Extract(ctx context.Context, rawURL string) (*RawExtraction, error) {
	if a.renderer == nil {
		return nil, domain.NewExtractionError(a.Name(), domain.CodeConfigurationError,
			errors.New("rendering service not configured"))
	}

	var html string
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: a.cfg.RetryCount + 1,
		IsRetryable: retryableAttempt,
	}, func() error {
		var renderErr error
		html, renderErr = a.renderer.Render(ctx, rawURL)
		if renderErr != nil {
			return classifyTransportError(a.Name(), renderErr)
		}
		return nil
	})
	if err != nil {
		return nil, asExtractionError(a.Name(), err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         err,
			Payload:     []byte(html),
			PayloadKind: domain.PayloadUnstructured,
		}
	}

	ext, ok := parseProductDocument(doc, rawURL)
	if !ok {
		// Script-heavy pages often inject markup late; fall back to a
		// generic title + visible-price scrape of the rendered DOM.
		ext, ok = parseRenderedGeneric(doc, rawURL)
	}
	if !ok {
		return nil, &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         errors.New("no product data in rendered page"),
			Payload:     []byte(html),
			PayloadKind: domain.PayloadUnstructured,
		}
	}

	if ext.Payload == nil || ext.PayloadKind == "" {
		ext.Payload = []byte(html)
		ext.PayloadKind = domain.PayloadUnstructured
	}

	return ext, nil
}

var visiblePricePattern = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{2})?`)

// parseRenderedGeneric scrapes title and the first visible price from a
// rendered DOM when no structured markup is present. Best-effort only.
func parseRenderedGeneric(doc *goquery.Document, sourceURL string) (*RawExtraction, bool) {
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		return nil, false
	}

	price := visiblePricePattern.FindString(doc.Find("body").Text())
	if price == "" {
		return nil, false
	}

	ext := &RawExtraction{
		Title:       title,
		PriceRaw:    price,
		Marketplace: domain.ExtractDomain(sourceURL),
		SourceURL:   sourceURL,
	}

	if img, ok := doc.Find("meta[property='og:image']").Attr("content"); ok && img != "" {
		ext.Images = []string{img}
	}

	return ext, true
}
