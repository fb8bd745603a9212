// Package render is the HTTP client for the browser-automation rendering
// service. The service is a black box: it accepts a URL plus timeout and
// returns fully rendered HTML.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/config"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/httpx"
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

const maxRenderedBytes = 8 << 20

// Client calls the rendering collaborator.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  logger.Logger
}

func NewClient(cfg config.RenderConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
		client:  httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		logger:  log,
	}
}

type renderRequest struct {
	URL      string `json:"url"`
	TimeoutS int    `json:"timeout_s"`
}

type renderResponse struct {
	HTML  string `json:"html"`
	Error string `json:"error,omitempty"`
}

// Render fetches the rendered HTML for rawURL.
func (c *Client) Render(ctx context.Context, rawURL string) (string, error) {
	payload, err := json.Marshal(renderRequest{
		URL:      rawURL,
		TimeoutS: int(c.timeout.Seconds()),
	})
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call render service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedBytes))
	if err != nil {
		return "", fmt.Errorf("read render response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render service status %d", resp.StatusCode)
	}

	var rendered renderResponse
	if unmarshalErr := json.Unmarshal(body, &rendered); unmarshalErr != nil {
		return "", fmt.Errorf("decode render response: %w", unmarshalErr)
	}
	if rendered.Error != "" {
		return "", fmt.Errorf("render service: %s", rendered.Error)
	}
	if rendered.HTML == "" {
		return "", fmt.Errorf("render service returned empty document")
	}

	return rendered.HTML, nil
}
