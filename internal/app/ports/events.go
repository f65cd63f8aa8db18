package ports

import "context"

// Event types fanned out to subscribers and webhooks.
const (
	EventOrderUpdate      = "order:update"
	EventMonitoringUpdate = "monitoring:update"
	EventNotification     = "notification"
)

// EventPublisher decouples lifecycle state changes from live subscribers.
// Delivery is best-effort: only subscribers attached at publish time are
// notified.
type EventPublisher interface {
	// Broadcast delivers to every subscriber of eventType regardless of owner.
	Broadcast(eventType string, data any)
	// PublishToOwner delivers only to subscribers scoped to owner.
	PublishToOwner(owner, eventType string, data any)
}

// TaskRunner executes named background tasks that outlive the originating
// request. Submit returns an error when the runner is saturated or stopped.
type TaskRunner interface {
	Submit(name string, fn func(context.Context)) error
}

// WebhookDeliverer pushes a lifecycle event to an externally registered
// endpoint, retrying with backoff and recording the outcome in the ledger.
type WebhookDeliverer interface {
	DeliverWithRetry(ctx context.Context, url, eventType string, payload any, resourceID string) error
}
