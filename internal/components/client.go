// Package components is the read-only client for the component catalog
// lookup service: given a free-text model name it returns a canonical
// component record or none.
package components

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/httpx"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// Component is a canonical component record.
type Component struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Family string `json:"family,omitempty"`
}

// Client calls the component lookup collaborator.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

func NewClient(cfg config.ComponentsConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client:  httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		logger:  log,
	}
}

// Lookup resolves freeText to a canonical component. A miss is (nil, nil),
// not an error.
func (c *Client) Lookup(ctx context.Context, freeText string) (*Component, error) {
	lookupURL := c.baseURL + "/api/v1/components/lookup?q=" + url.QueryEscape(freeText)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call component lookup: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var component Component
		if decodeErr := json.NewDecoder(resp.Body).Decode(&component); decodeErr != nil {
			return nil, fmt.Errorf("decode component: %w", decodeErr)
		}
		if component.ID == "" {
			return nil, nil
		}
		return &component, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("component lookup status %d", resp.StatusCode)
	}
}
