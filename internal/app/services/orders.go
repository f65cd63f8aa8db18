package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

// OrderLifecycle creates order records, reconciles them with the provider in
// the background, and publishes state-change events. Only this service
// mutates order status and provider-id fields.
type OrderLifecycle struct {
	store    ports.OrderStore
	provider ports.ProviderClient
	events   ports.EventPublisher
	tasks    ports.TaskRunner
	log      *slog.Logger
}

// NewOrderLifecycle constructs the order lifecycle manager.
func NewOrderLifecycle(store ports.OrderStore, provider ports.ProviderClient, events ports.EventPublisher, tasks ports.TaskRunner, log *slog.Logger) *OrderLifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &OrderLifecycle{store: store, provider: provider, events: events, tasks: tasks, log: log}
}

// Create validates params, obtains a synchronous price estimate (a provider
// failure here aborts creation), persists the record as pending, and
// schedules the provider order placement in the background. The returned
// record never reflects the background outcome.
func (s *OrderLifecycle) Create(ctx context.Context, owner string, params ports.OrderParams) (ports.Order, error) {
	if owner == "" {
		return ports.Order{}, validationError("owner is required")
	}
	if params.DataType == "" && params.AreaOfInterest == nil {
		return ports.Order{}, validationError("order params must specify a data type or an area of interest")
	}
	if params.AreaOfInterest != nil {
		if err := validateGeometry(*params.AreaOfInterest); err != nil {
			return ports.Order{}, err
		}
	}

	estimate, err := s.provider.EstimatePrice(ctx, params)
	if err != nil {
		return ports.Order{}, fmt.Errorf("estimate price: %w", err)
	}

	id, err := newResourceID("ord")
	if err != nil {
		return ports.Order{}, err
	}
	now := time.Now().UTC()
	order := ports.Order{
		ID:        id,
		OwnerID:   owner,
		Params:    params,
		Price:     &estimate.EstimatedTotal,
		Currency:  estimate.Currency,
		Status:    ports.OrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return ports.Order{}, fmt.Errorf("persist order: %w", err)
	}

	// The pending event must go out before the placement task is handed to a
	// worker; otherwise a fast worker can publish the processing event first
	// and subscribers observe a status regression.
	s.events.PublishToOwner(owner, ports.EventOrderUpdate, order)
	s.schedulePlacement(order)
	return order, nil
}

// schedulePlacement launches the single-attempt provider round trip. Remote
// failure is absorbed into a failed status plus an event; it never reaches
// caller-visible code.
func (s *OrderLifecycle) schedulePlacement(order ports.Order) {
	err := s.tasks.Submit("order.place", func(ctx context.Context) {
		remote, err := s.provider.CreateOrder(ctx, order.Params)
		if err != nil {
			s.log.ErrorContext(ctx, "provider order placement failed", "order_id", order.ID, "error", err)
			s.applyPlacementOutcome(ctx, order, ports.OrderFailed, "")
			return
		}
		s.applyPlacementOutcome(ctx, order, ports.OrderProcessing, remote.ID)
	})
	if err != nil {
		s.log.Error("order placement not scheduled", "order_id", order.ID, "error", err)
	}
}

func (s *OrderLifecycle) applyPlacementOutcome(ctx context.Context, order ports.Order, status ports.OrderStatus, providerID string) {
	current, err := s.store.GetOrder(ctx, order.ID, "")
	if err != nil {
		s.log.ErrorContext(ctx, "load order after placement", "order_id", order.ID, "error", err)
		return
	}
	// A terminal local status (e.g. an interleaved cancel) wins over the
	// in-flight remote outcome.
	if current.Status.Terminal() {
		s.log.InfoContext(ctx, "placement outcome discarded, order already terminal",
			"order_id", order.ID, "status", string(current.Status))
		return
	}

	update := ports.OrderUpdate{Status: &status}
	if providerID != "" {
		update.ProviderOrderID = &providerID
	}
	updated, err := s.store.UpdateOrder(ctx, order.ID, update)
	if err != nil {
		s.log.ErrorContext(ctx, "persist placement outcome", "order_id", order.ID, "error", err)
		return
	}
	s.events.PublishToOwner(updated.OwnerID, ports.EventOrderUpdate, updated)
}

// Get returns the local order record.
func (s *OrderLifecycle) Get(ctx context.Context, id, owner string) (ports.Order, error) {
	return s.store.GetOrder(ctx, id, owner)
}

// GetStatus returns the order, reconciled best-effort against the provider.
// A provider failure degrades to the last known local status. A terminal
// local status is never overwritten by the remote-reported one.
func (s *OrderLifecycle) GetStatus(ctx context.Context, id, owner string) (ports.Order, error) {
	order, err := s.store.GetOrder(ctx, id, owner)
	if err != nil {
		return ports.Order{}, err
	}
	if order.ProviderOrderID == "" || order.Status.Terminal() {
		return order, nil
	}

	remote, err := s.provider.GetOrderStatus(ctx, order.ProviderOrderID)
	if err != nil {
		s.log.DebugContext(ctx, "order status reconciliation degraded to local state",
			"order_id", order.ID, "error", err)
		return order, nil
	}

	mapped, ok := mapProviderOrderStatus(remote.Status)
	if !ok || mapped == order.Status {
		return order, nil
	}
	updated, err := s.store.UpdateOrder(ctx, order.ID, ports.OrderUpdate{Status: &mapped})
	if err != nil {
		return ports.Order{}, fmt.Errorf("persist reconciled status: %w", err)
	}
	s.events.PublishToOwner(updated.OwnerID, ports.EventOrderUpdate, updated)
	return updated, nil
}

// Cancel transitions the order to cancelled. Cancelling an already-cancelled
// order is a no-op returning the current record; cancelling a completed order
// is a conflict. The in-flight provider call, if any, is not aborted.
func (s *OrderLifecycle) Cancel(ctx context.Context, id, owner string) (ports.Order, error) {
	order, err := s.store.GetOrder(ctx, id, owner)
	if err != nil {
		return ports.Order{}, err
	}
	switch order.Status {
	case ports.OrderCompleted:
		return ports.Order{}, conflictError("completed order cannot be cancelled")
	case ports.OrderCancelled:
		return order, nil
	}

	status := ports.OrderCancelled
	updated, err := s.store.UpdateOrder(ctx, order.ID, ports.OrderUpdate{Status: &status})
	if err != nil {
		return ports.Order{}, fmt.Errorf("persist cancellation: %w", err)
	}
	s.events.PublishToOwner(updated.OwnerID, ports.EventOrderUpdate, updated)
	return updated, nil
}

// History lists the owner's orders, newest first.
func (s *OrderLifecycle) History(ctx context.Context, owner string, limit, offset int) ([]ports.Order, error) {
	if owner == "" {
		return nil, validationError("owner is required")
	}
	limit, offset = NormalizeListWindow(limit, offset)
	return s.store.ListOrdersByOwner(ctx, owner, limit, offset)
}

func mapProviderOrderStatus(remote string) (ports.OrderStatus, bool) {
	switch remote {
	case "pending", "created":
		return ports.OrderPending, true
	case "processing", "in_progress":
		return ports.OrderProcessing, true
	case "completed", "complete", "delivered":
		return ports.OrderCompleted, true
	case "failed", "error":
		return ports.OrderFailed, true
	default:
		return "", false
	}
}
