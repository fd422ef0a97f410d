// Package eurostat downloads JSON-stat indicator cubes from the Eurostat
// dissemination API.
package eurostat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/citystat/city-quality-etl/internal/domain"
	"github.com/citystat/city-quality-etl/internal/observability"
)

// Client fetches datasets over HTTP. It holds no mutable state and is safe
// for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a dataset client against the given API base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Dataset downloads one dataset (e.g. "urb_ctour") as a cube. The response
// is decoded but not validated; callers run Cube.Validate before ingesting.
func (c *Client) Dataset(ctx context.Context, code string) (*domain.Cube, error) {
	params := url.Values{
		"format": {"JSON"},
		"lang":   {"EN"},
	}
	fullURL := fmt.Sprintf("%s/data/%s?%s", c.baseURL, url.PathEscape(code), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.logger.Info("downloading dataset", "dataset", code)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset request %s: %w", code, err)
	}
	defer resp.Body.Close()
	c.metrics.DatasetFetchDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("eurostat API error: status %d: %s", resp.StatusCode, body)
	}

	var cube domain.Cube
	if err := json.NewDecoder(resp.Body).Decode(&cube); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", code, err)
	}

	c.logger.Info("dataset downloaded", "dataset", code, "cells", len(cube.Value))
	return &cube, nil
}
