package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

// Client fetches the services and stylists reference lists. Both endpoints
// are idempotent reads; a failed fetch is always safe to retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a reference-data client against the booking API.
func NewClient(baseURL string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Services fetches the bookable services list.
func (c *Client) Services(ctx context.Context) ([]Service, error) {
	var out []Service
	if err := c.getJSON(ctx, "/api/services", &out); err != nil {
		return nil, fmt.Errorf("refdata: load services: %w", err)
	}
	return out, nil
}

// Stylists fetches the staff list. An empty list is a valid response and
// triggers the no-preference default downstream.
func (c *Client) Stylists(ctx context.Context) ([]Stylist, error) {
	var out []Stylist
	if err := c.getJSON(ctx, "/api/stylists", &out); err != nil {
		return nil, fmt.Errorf("refdata: load stylists: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("reference data fetch failed",
			"path", path,
			"status", resp.StatusCode,
			"body", string(body),
		)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
