package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced resource does not exist or is not
// visible to the requesting owner.
var ErrNotFound = errors.New("resource not found")

// OrderStatus is the local lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further remote-driven transition may overwrite
// the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderCancelled:
		return true
	default:
		return false
	}
}

// MonitoringStatus is the lifecycle state of a monitoring configuration.
type MonitoringStatus string

const (
	MonitoringInactive MonitoringStatus = "inactive"
	MonitoringActive   MonitoringStatus = "active"
	MonitoringPaused   MonitoringStatus = "paused"
)

// DeliveryStatus is the state of one webhook delivery ledger entry.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Geometry is an area-of-interest shape. Coordinates are kept opaque; only
// the type and presence of coordinates are validated.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// OrderParams describes what imagery the caller wants. The payload is passed
// through to the provider unchanged.
type OrderParams struct {
	DataType       string    `json:"dataType,omitempty"`
	AreaOfInterest *Geometry `json:"areaOfInterest,omitempty"`
	Resolution     string    `json:"resolution,omitempty"`
	FromDate       string    `json:"fromDate,omitempty"`
	ToDate         string    `json:"toDate,omitempty"`
}

// Order is the locally persisted order record.
type Order struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"ownerId"`
	ProviderOrderID string      `json:"providerOrderId,omitempty"`
	Params          OrderParams `json:"params"`
	Price           *float64    `json:"price,omitempty"`
	Currency        string      `json:"currency,omitempty"`
	Status          OrderStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// MonitoringConfig holds provider-interpreted monitoring options.
type MonitoringConfig struct {
	Frequency      string `json:"frequency,omitempty"`
	NotifyOnChange bool   `json:"notifyOnChange,omitempty"`
}

// Monitoring is the locally persisted monitoring configuration.
type Monitoring struct {
	ID             string           `json:"id"`
	OwnerID        string           `json:"ownerId"`
	ProviderID     string           `json:"providerId,omitempty"`
	AreaOfInterest Geometry         `json:"areaOfInterest"`
	WebhookURL     string           `json:"webhookUrl,omitempty"`
	Config         MonitoringConfig `json:"config"`
	Status         MonitoringStatus `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// DeliveryRecord is one webhook delivery attempt sequence in the ledger. A
// record outlives its owning resource; ResourceID may reference a deleted
// monitoring configuration.
type DeliveryRecord struct {
	ID          string          `json:"id"`
	ResourceID  string          `json:"resourceId,omitempty"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	Status      DeliveryStatus  `json:"status"`
	RetryCount  int             `json:"retryCount"`
	DeliveredAt *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// OrderUpdate carries partial field changes; nil fields are left untouched.
type OrderUpdate struct {
	Status          *OrderStatus
	ProviderOrderID *string
	Price           *float64
	Currency        *string
}

// MonitoringUpdate carries partial field changes; nil fields are left untouched.
type MonitoringUpdate struct {
	Status         *MonitoringStatus
	ProviderID     *string
	AreaOfInterest *Geometry
	WebhookURL     *string
	Config         *MonitoringConfig
}

// DeliveryUpdate carries partial ledger entry changes; nil fields are left untouched.
type DeliveryUpdate struct {
	Status      *DeliveryStatus
	RetryCount  *int
	DeliveredAt *time.Time
}

// OrderStore persists order records.
type OrderStore interface {
	CreateOrder(ctx context.Context, order Order) error
	// GetOrder returns the order with the given id. An empty owner skips the
	// ownership check.
	GetOrder(ctx context.Context, id, owner string) (Order, error)
	UpdateOrder(ctx context.Context, id string, update OrderUpdate) (Order, error)
	ListOrdersByOwner(ctx context.Context, owner string, limit, offset int) ([]Order, error)
}

// MonitoringStore persists monitoring configurations.
type MonitoringStore interface {
	CreateMonitoring(ctx context.Context, monitoring Monitoring) error
	GetMonitoring(ctx context.Context, id, owner string) (Monitoring, error)
	UpdateMonitoring(ctx context.Context, id string, update MonitoringUpdate) (Monitoring, error)
	ListMonitoringByOwner(ctx context.Context, owner string, limit, offset int) ([]Monitoring, error)
	DeleteMonitoring(ctx context.Context, id, owner string) error
}

// DeliveryStore persists the webhook delivery ledger.
type DeliveryStore interface {
	CreateDelivery(ctx context.Context, record DeliveryRecord) error
	GetDelivery(ctx context.Context, id string) (DeliveryRecord, error)
	UpdateDelivery(ctx context.Context, id string, update DeliveryUpdate) (DeliveryRecord, error)
	ListDeliveries(ctx context.Context, limit, offset int) ([]DeliveryRecord, error)
}
