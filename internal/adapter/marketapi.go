package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/domain"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/httpx"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/retry"
)

// MarketAPIName identifies the official marketplace API adapter.
const MarketAPIName = "market_api"

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// MarketAPIAdapter extracts listings through an official marketplace item API.
// Official APIs are authoritative, so this adapter registers at the highest
// priority for the domains it serves.
type MarketAPIAdapter struct {
	cfg    config.AdapterConfig
	client *http.Client
	logger logger.Logger
}

// NewMarketAPIAdapter builds the adapter. A missing credential is not checked
// here: it is reported as CONFIGURATION_ERROR at extraction time so the
// router can still fall through to the next candidate.
func NewMarketAPIAdapter(cfg config.AdapterConfig, log logger.Logger) *MarketAPIAdapter {
	return &MarketAPIAdapter{
		cfg:    cfg,
		client: httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		logger: log,
	}
}

func (a *MarketAPIAdapter) Name() string {
	return MarketAPIName
}

// apiItem mirrors the marketplace item lookup response.
type apiItem struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Price  struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	Condition string   `json:"condition"`
	Images    []string `json:"image_urls"`
	Seller    struct {
		Username string `json:"username"`
	} `json:"seller"`
	Specs struct {
		Brand     string `json:"brand"`
		Model     string `json:"model"`
		CPU       string `json:"cpu"`
		RAMGB     int    `json:"ram_gb"`
		StorageGB int    `json:"storage_gb"`
	} `json:"item_specifics"`
	Description string `json:"short_description"`
}

func (a *MarketAPIAdapter) Extract(ctx context.Context, rawURL string) (*RawExtraction, error) {
	if a.cfg.Endpoint == "" || a.cfg.APIKey == "" {
		return nil, domain.NewExtractionError(a.Name(), domain.CodeConfigurationError,
			errors.New("marketplace API endpoint or credential not configured"))
	}

	lookupURL := a.cfg.Endpoint + "/v1/items/lookup?url=" + url.QueryEscape(rawURL)

	var extraction *RawExtraction
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: a.cfg.RetryCount + 1,
		IsRetryable: retryableAttempt,
	}, func() error {
		var attemptErr error
		extraction, attemptErr = a.fetchItem(ctx, lookupURL, rawURL)
		return attemptErr
	})
	if err != nil {
		return nil, asExtractionError(a.Name(), err)
	}

	return extraction, nil
}

func (a *MarketAPIAdapter) fetchItem(ctx context.Context, lookupURL, sourceURL string) (*RawExtraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, http.NoBody)
	if err != nil {
		return nil, domain.NewExtractionError(a.Name(), domain.CodeInvalidResponse, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(a.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(a.Name(), err)
	}

	if statusErr := a.checkStatus(resp.StatusCode, body); statusErr != nil {
		return nil, statusErr
	}

	var item apiItem
	if unmarshalErr := json.Unmarshal(body, &item); unmarshalErr != nil {
		return nil, &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         fmt.Errorf("decode item: %w", unmarshalErr),
			Payload:     body,
			PayloadKind: domain.PayloadStructured,
		}
	}
	if item.Title == "" {
		return nil, &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         errors.New("item response missing title"),
			Payload:     body,
			PayloadKind: domain.PayloadStructured,
		}
	}

	return &RawExtraction{
		Title:        item.Title,
		PriceRaw:     item.Price.Value,
		Currency:     item.Price.Currency,
		ConditionRaw: item.Condition,
		Images:       item.Images,
		Seller:       item.Seller.Username,
		Marketplace:  domain.ExtractDomain(sourceURL),
		VendorItemID: item.ItemID,
		Manufacturer: item.Specs.Brand,
		ModelNumber:  item.Specs.Model,
		CPUModel:     item.Specs.CPU,
		RAMGB:        item.Specs.RAMGB,
		StorageGB:    item.Specs.StorageGB,
		Description:  item.Description,
		SourceURL:    sourceURL,
		Payload:      body,
		PayloadKind:  domain.PayloadStructured,
	}, nil
}

func (a *MarketAPIAdapter) checkStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return domain.NewExtractionError(a.Name(), domain.CodeItemNotFound,
			errors.New("item not found upstream"))
	case status == http.StatusTooManyRequests:
		return domain.NewExtractionError(a.Name(), domain.CodeRateLimited,
			errors.New("marketplace API rate limit"))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewExtractionError(a.Name(), domain.CodeConfigurationError,
			fmt.Errorf("credential rejected: status %d", status))
	default:
		return &domain.ExtractionError{
			Adapter:     a.Name(),
			Code:        domain.CodeInvalidResponse,
			Err:         fmt.Errorf("unexpected status %d", status),
			Payload:     body,
			PayloadKind: domain.PayloadStructured,
		}
	}
}

// classifyTransportError maps network-level failures onto the error taxonomy.
func classifyTransportError(adapterName string, err error) error {
	if isTimeout(err) {
		return domain.NewExtractionError(adapterName, domain.CodeTimeout, err)
	}
	return domain.NewExtractionError(adapterName, domain.CodeInvalidResponse, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retryableAttempt decides in-adapter retries: transient transport failures
// and rate limiting are retried with backoff before a typed error surfaces to
// the router; deterministic failures are not.
func retryableAttempt(err error) bool {
	var exErr *domain.ExtractionError
	if errors.As(err, &exErr) {
		return exErr.Code == domain.CodeTimeout || exErr.Code == domain.CodeRateLimited
	}
	return false
}

// asExtractionError unwraps retry exhaustion down to the last typed error so
// the router always sees the fixed vocabulary.
func asExtractionError(adapterName string, err error) error {
	var exErr *domain.ExtractionError
	if errors.As(err, &exErr) {
		return exErr
	}
	if errors.Is(err, retry.ErrContextCancelled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewExtractionError(adapterName, domain.CodeTimeout, err)
	}
	return domain.NewExtractionError(adapterName, domain.CodeInvalidResponse, err)
}
