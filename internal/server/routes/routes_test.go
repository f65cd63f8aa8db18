package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/app/services"
)

type stubOrderStore struct {
	mu     sync.Mutex
	orders map[string]ports.Order
}

func (s *stubOrderStore) CreateOrder(_ context.Context, order ports.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderStore) GetOrder(_ context.Context, id, owner string) (ports.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok || (owner != "" && order.OwnerID != owner) {
		return ports.Order{}, ports.ErrNotFound
	}
	return order, nil
}

func (s *stubOrderStore) UpdateOrder(_ context.Context, id string, update ports.OrderUpdate) (ports.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return ports.Order{}, ports.ErrNotFound
	}
	if update.Status != nil {
		order.Status = *update.Status
	}
	if update.ProviderOrderID != nil {
		order.ProviderOrderID = *update.ProviderOrderID
	}
	s.orders[id] = order
	return order, nil
}

func (s *stubOrderStore) ListOrdersByOwner(_ context.Context, owner string, _, _ int) ([]ports.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Order, 0)
	for _, order := range s.orders {
		if order.OwnerID == owner {
			out = append(out, order)
		}
	}
	return out, nil
}

type stubProvider struct {
	estimateErr error
}

func (s *stubProvider) EstimatePrice(context.Context, ports.OrderParams) (ports.PriceEstimate, error) {
	if s.estimateErr != nil {
		return ports.PriceEstimate{}, s.estimateErr
	}
	return ports.PriceEstimate{EstimatedTotal: 100.50, Currency: "USD"}, nil
}

func (s *stubProvider) CreateOrder(context.Context, ports.OrderParams) (ports.ProviderResource, error) {
	return ports.ProviderResource{ID: "ext-1", Status: "processing"}, nil
}

func (s *stubProvider) GetOrderStatus(context.Context, string) (ports.ProviderStatus, error) {
	return ports.ProviderStatus{Status: "processing"}, nil
}

func (s *stubProvider) SetupMonitoring(context.Context, ports.Geometry, string, ports.MonitoringConfig) (ports.ProviderResource, error) {
	return ports.ProviderResource{ID: "mon-ext-1", Status: "active"}, nil
}

func (s *stubProvider) GetMonitoringStatus(context.Context, string) (ports.ProviderStatus, error) {
	return ports.ProviderStatus{Status: "active"}, nil
}

type noopPublisher struct{}

func (noopPublisher) Broadcast(string, any)              {}
func (noopPublisher) PublishToOwner(string, string, any) {}

type discardRunner struct{}

func (discardRunner) Submit(string, func(context.Context)) error { return nil }

func newOrderTestServer(provider ports.ProviderClient) (*echo.Echo, *stubOrderStore) {
	store := &stubOrderStore{orders: make(map[string]ports.Order)}
	svc := services.NewOrderLifecycle(store, provider, noopPublisher{}, discardRunner{}, nil)

	e := echo.New()
	NewOrderRoutes(svc).RegisterRoutes(e)
	NewSystemRoutes().RegisterRoutes(e)
	return e, store
}

func TestCreateOrderEndpoint(t *testing.T) {
	e, store := newOrderTestServer(&stubProvider{})

	body := `{"dataType":"optical","areaOfInterest":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(ownerHeader, "acct-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"pending"`)
	require.Contains(t, rec.Body.String(), `"price":100.5`)
	require.Len(t, store.orders, 1)
}

func TestCreateOrderRequiresOwnerHeader(t *testing.T) {
	e, _ := newOrderTestServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"dataType":"optical"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderMapsValidationErrors(t *testing.T) {
	e, _ := newOrderTestServer(&stubProvider{})

	body := `{"areaOfInterest":{"type":"Point","coordinates":[0,0]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(ownerHeader, "acct-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderMapsProviderOutageToBadGateway(t *testing.T) {
	e, _ := newOrderTestServer(&stubProvider{estimateErr: ports.ErrProviderUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"dataType":"optical"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(ownerHeader, "acct-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetOrderNotFound(t *testing.T) {
	e, _ := newOrderTestServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_missing", nil)
	req.Header.Set(ownerHeader, "acct-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelCompletedOrderConflicts(t *testing.T) {
	e, store := newOrderTestServer(&stubProvider{})
	store.orders["ord_1"] = ports.Order{ID: "ord_1", OwnerID: "acct-1", Status: ports.OrderCompleted}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord_1/cancel", nil)
	req.Header.Set(ownerHeader, "acct-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

type stubDeliveryStore struct {
	gotLimit  int
	gotOffset int
}

func (s *stubDeliveryStore) CreateDelivery(context.Context, ports.DeliveryRecord) error { return nil }

func (s *stubDeliveryStore) GetDelivery(context.Context, string) (ports.DeliveryRecord, error) {
	return ports.DeliveryRecord{}, ports.ErrNotFound
}

func (s *stubDeliveryStore) UpdateDelivery(context.Context, string, ports.DeliveryUpdate) (ports.DeliveryRecord, error) {
	return ports.DeliveryRecord{}, ports.ErrNotFound
}

func (s *stubDeliveryStore) ListDeliveries(_ context.Context, limit, offset int) ([]ports.DeliveryRecord, error) {
	s.gotLimit = limit
	s.gotOffset = offset
	return nil, nil
}

func TestListDeliveriesClampsWindowToSharedPolicy(t *testing.T) {
	ledger := &stubDeliveryStore{}
	e := echo.New()
	NewDeliveryRoutes(ledger, nil).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries?limit=9999&offset=-3", nil)
	req.Header.Set(ownerHeader, "acct-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 500, ledger.gotLimit)
	require.Equal(t, 0, ledger.gotOffset)
}

func TestHealthEndpoint(t *testing.T) {
	e, _ := newOrderTestServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
