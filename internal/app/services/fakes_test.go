package services

import (
	"context"
	"sync"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]ports.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]ports.Order)}
}

func (f *fakeOrderStore) CreateOrder(_ context.Context, order ports.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderStore) GetOrder(_ context.Context, id, owner string) (ports.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok || (owner != "" && order.OwnerID != owner) {
		return ports.Order{}, ports.ErrNotFound
	}
	return order, nil
}

func (f *fakeOrderStore) UpdateOrder(_ context.Context, id string, update ports.OrderUpdate) (ports.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return ports.Order{}, ports.ErrNotFound
	}
	if update.Status != nil {
		order.Status = *update.Status
	}
	if update.ProviderOrderID != nil {
		order.ProviderOrderID = *update.ProviderOrderID
	}
	if update.Price != nil {
		order.Price = update.Price
	}
	if update.Currency != nil {
		order.Currency = *update.Currency
	}
	f.orders[id] = order
	return order, nil
}

func (f *fakeOrderStore) ListOrdersByOwner(_ context.Context, owner string, _, _ int) ([]ports.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.Order, 0)
	for _, order := range f.orders {
		if order.OwnerID == owner {
			out = append(out, order)
		}
	}
	return out, nil
}

type fakeMonitoringStore struct {
	mu          sync.Mutex
	monitorings map[string]ports.Monitoring
}

func newFakeMonitoringStore() *fakeMonitoringStore {
	return &fakeMonitoringStore{monitorings: make(map[string]ports.Monitoring)}
}

func (f *fakeMonitoringStore) CreateMonitoring(_ context.Context, monitoring ports.Monitoring) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.monitorings[monitoring.ID] = monitoring
	return nil
}

func (f *fakeMonitoringStore) GetMonitoring(_ context.Context, id, owner string) (ports.Monitoring, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	monitoring, ok := f.monitorings[id]
	if !ok || (owner != "" && monitoring.OwnerID != owner) {
		return ports.Monitoring{}, ports.ErrNotFound
	}
	return monitoring, nil
}

func (f *fakeMonitoringStore) UpdateMonitoring(_ context.Context, id string, update ports.MonitoringUpdate) (ports.Monitoring, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	monitoring, ok := f.monitorings[id]
	if !ok {
		return ports.Monitoring{}, ports.ErrNotFound
	}
	if update.Status != nil {
		monitoring.Status = *update.Status
	}
	if update.ProviderID != nil {
		monitoring.ProviderID = *update.ProviderID
	}
	if update.AreaOfInterest != nil {
		monitoring.AreaOfInterest = *update.AreaOfInterest
	}
	if update.WebhookURL != nil {
		monitoring.WebhookURL = *update.WebhookURL
	}
	if update.Config != nil {
		monitoring.Config = *update.Config
	}
	f.monitorings[id] = monitoring
	return monitoring, nil
}

func (f *fakeMonitoringStore) ListMonitoringByOwner(_ context.Context, owner string, _, _ int) ([]ports.Monitoring, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.Monitoring, 0)
	for _, monitoring := range f.monitorings {
		if monitoring.OwnerID == owner {
			out = append(out, monitoring)
		}
	}
	return out, nil
}

func (f *fakeMonitoringStore) DeleteMonitoring(_ context.Context, id, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	monitoring, ok := f.monitorings[id]
	if !ok || monitoring.OwnerID != owner {
		return ports.ErrNotFound
	}
	delete(f.monitorings, id)
	return nil
}

type fakeProvider struct {
	estimateFn         func(ports.OrderParams) (ports.PriceEstimate, error)
	createOrderFn      func(ports.OrderParams) (ports.ProviderResource, error)
	orderStatusFn      func(string) (ports.ProviderStatus, error)
	setupFn            func(ports.Geometry, string, ports.MonitoringConfig) (ports.ProviderResource, error)
	monitoringStatusFn func(string) (ports.ProviderStatus, error)

	mu            sync.Mutex
	estimateCalls int
}

func (f *fakeProvider) EstimatePrice(_ context.Context, params ports.OrderParams) (ports.PriceEstimate, error) {
	f.mu.Lock()
	f.estimateCalls++
	f.mu.Unlock()
	if f.estimateFn == nil {
		return ports.PriceEstimate{EstimatedTotal: 1, Currency: "USD"}, nil
	}
	return f.estimateFn(params)
}

func (f *fakeProvider) CreateOrder(_ context.Context, params ports.OrderParams) (ports.ProviderResource, error) {
	if f.createOrderFn == nil {
		return ports.ProviderResource{ID: "ext-1", Status: "processing"}, nil
	}
	return f.createOrderFn(params)
}

func (f *fakeProvider) GetOrderStatus(_ context.Context, providerID string) (ports.ProviderStatus, error) {
	if f.orderStatusFn == nil {
		return ports.ProviderStatus{Status: "processing"}, nil
	}
	return f.orderStatusFn(providerID)
}

func (f *fakeProvider) SetupMonitoring(_ context.Context, aoi ports.Geometry, webhookURL string, config ports.MonitoringConfig) (ports.ProviderResource, error) {
	if f.setupFn == nil {
		return ports.ProviderResource{ID: "mon-ext-1", Status: "active"}, nil
	}
	return f.setupFn(aoi, webhookURL, config)
}

func (f *fakeProvider) GetMonitoringStatus(_ context.Context, providerID string) (ports.ProviderStatus, error) {
	if f.monitoringStatusFn == nil {
		return ports.ProviderStatus{Status: "active"}, nil
	}
	return f.monitoringStatusFn(providerID)
}

type publishedEvent struct {
	owner     string
	eventType string
	data      any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Broadcast(eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType: eventType, data: data})
}

func (f *fakePublisher) PublishToOwner(owner, eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{owner: owner, eventType: eventType, data: data})
}

func (f *fakePublisher) byType(eventType string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, 0)
	for _, event := range f.events {
		if event.eventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

// manualRunner queues submitted tasks so tests control when background work
// executes relative to foreground calls.
type manualRunner struct {
	mu    sync.Mutex
	tasks []func(context.Context)
}

func (r *manualRunner) Submit(_ string, fn func(context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, fn)
	return nil
}

func (r *manualRunner) runAll(ctx context.Context) {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, fn := range tasks {
		fn(ctx)
	}
}

// inlineRunner executes submitted tasks before Submit returns, standing in
// for a worker that finishes its round trip immediately.
type inlineRunner struct{}

func (inlineRunner) Submit(_ string, fn func(context.Context)) error {
	fn(context.Background())
	return nil
}

type recordedDelivery struct {
	url        string
	eventType  string
	payload    any
	resourceID string
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
	err        error
}

func (f *fakeDeliverer) DeliverWithRetry(_ context.Context, url, eventType string, payload any, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, recordedDelivery{url: url, eventType: eventType, payload: payload, resourceID: resourceID})
	return f.err
}
