package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

// Client is the HTTP implementation of ports.ProviderClient against the
// remote geospatial data API. Transport-level failures, timeouts and 5xx
// responses are classified as ports.ErrProviderUnavailable; 4xx responses are
// surfaced as rejections.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ ports.ProviderClient = (*Client)(nil)

// NewClient constructs a provider client. The HTTP client is traced via
// otelhttp and bounded by the given timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// EstimatePrice asks the provider to quote the order.
func (c *Client) EstimatePrice(ctx context.Context, params ports.OrderParams) (ports.PriceEstimate, error) {
	var estimate ports.PriceEstimate
	if err := c.do(ctx, http.MethodPost, "/pricing/estimate", params, &estimate); err != nil {
		return ports.PriceEstimate{}, err
	}
	return estimate, nil
}

// CreateOrder places the order with the provider.
func (c *Client) CreateOrder(ctx context.Context, params ports.OrderParams) (ports.ProviderResource, error) {
	var resource ports.ProviderResource
	if err := c.do(ctx, http.MethodPost, "/orders", params, &resource); err != nil {
		return ports.ProviderResource{}, err
	}
	return resource, nil
}

// GetOrderStatus fetches the provider-side order status.
func (c *Client) GetOrderStatus(ctx context.Context, providerID string) (ports.ProviderStatus, error) {
	var status ports.ProviderStatus
	path := "/orders/" + url.PathEscape(providerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return ports.ProviderStatus{}, err
	}
	return status, nil
}

type setupMonitoringRequest struct {
	AreaOfInterest ports.Geometry         `json:"areaOfInterest"`
	WebhookURL     string                 `json:"webhookUrl,omitempty"`
	Config         ports.MonitoringConfig `json:"config"`
}

// SetupMonitoring registers the monitoring configuration with the provider.
func (c *Client) SetupMonitoring(ctx context.Context, aoi ports.Geometry, webhookURL string, config ports.MonitoringConfig) (ports.ProviderResource, error) {
	var resource ports.ProviderResource
	req := setupMonitoringRequest{AreaOfInterest: aoi, WebhookURL: webhookURL, Config: config}
	if err := c.do(ctx, http.MethodPost, "/monitoring", req, &resource); err != nil {
		return ports.ProviderResource{}, err
	}
	return resource, nil
}

// GetMonitoringStatus fetches the provider-side monitoring status.
func (c *Client) GetMonitoringStatus(ctx context.Context, providerID string) (ports.ProviderStatus, error) {
	var status ports.ProviderStatus
	path := "/monitoring/" + url.PathEscape(providerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return ports.ProviderStatus{}, err
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ports.ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s %s: status=%s", ports.ErrProviderUnavailable, method, path, resp.Status)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider rejected %s %s: status=%s body=%s", method, path, resp.Status, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
