package ports

import (
	"context"
	"errors"
)

// ErrProviderUnavailable marks provider client failures caused by the remote
// service being unreachable or erroring, as opposed to a rejected request.
var ErrProviderUnavailable = errors.New("provider unavailable")

// PriceEstimate is the provider's quote for an order.
type PriceEstimate struct {
	EstimatedTotal float64 `json:"estimatedTotal"`
	Currency       string  `json:"currency"`
}

// ProviderResource is the provider-side handle for a placed order or
// monitoring setup.
type ProviderResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ProviderStatus is a point-in-time provider-reported status.
type ProviderStatus struct {
	Status string `json:"status"`
}

// ProviderClient wraps the remote geospatial data API. Every call may fail,
// time out, or succeed; remote failures are reported via
// ErrProviderUnavailable.
type ProviderClient interface {
	EstimatePrice(ctx context.Context, params OrderParams) (PriceEstimate, error)
	CreateOrder(ctx context.Context, params OrderParams) (ProviderResource, error)
	GetOrderStatus(ctx context.Context, providerID string) (ProviderStatus, error)
	SetupMonitoring(ctx context.Context, aoi Geometry, webhookURL string, config MonitoringConfig) (ProviderResource, error)
	GetMonitoringStatus(ctx context.Context, providerID string) (ProviderStatus, error)
}
