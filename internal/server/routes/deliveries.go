package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/app/services"
	"github.com/orbitalhq/geosync/internal/webhooks/dispatcher"
)

// DeliveryRoutes registers the webhook delivery ledger endpoints.
type DeliveryRoutes struct {
	ledger     ports.DeliveryStore
	dispatcher *dispatcher.Dispatcher
}

// NewDeliveryRoutes constructs delivery ledger routes.
func NewDeliveryRoutes(ledger ports.DeliveryStore, d *dispatcher.Dispatcher) *DeliveryRoutes {
	return &DeliveryRoutes{ledger: ledger, dispatcher: d}
}

// RegisterRoutes registers delivery endpoints.
func (r *DeliveryRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api/v1/deliveries")

	api.GET("", r.handleList)
	api.GET("/:id", r.handleGet)
	api.POST("/:id/retry", r.handleRetry)
}

func (r *DeliveryRoutes) handleList(c echo.Context) error {
	if _, err := requestOwner(c); err != nil {
		return err
	}
	limit, offset := listWindow(c)
	limit, offset = services.NormalizeListWindow(limit, offset)
	records, err := r.ledger.ListDeliveries(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func (r *DeliveryRoutes) handleGet(c echo.Context) error {
	if _, err := requestOwner(c); err != nil {
		return err
	}
	record, err := r.ledger.GetDelivery(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (r *DeliveryRoutes) handleRetry(c echo.Context) error {
	if _, err := requestOwner(c); err != nil {
		return err
	}
	record, err := r.dispatcher.Retry(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, dispatcher.ErrNoWebhookURL) {
			return c.JSON(http.StatusConflict, errorBody("monitoring has no webhook url registered"))
		}
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}
