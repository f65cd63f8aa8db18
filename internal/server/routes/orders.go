package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/app/services"
)

// OrderRoutes registers the order lifecycle endpoints.
type OrderRoutes struct {
	orders *services.OrderLifecycle
}

// NewOrderRoutes constructs order routes.
func NewOrderRoutes(orders *services.OrderLifecycle) *OrderRoutes {
	return &OrderRoutes{orders: orders}
}

// RegisterRoutes registers order endpoints.
func (r *OrderRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api/v1/orders")

	api.POST("", r.handleCreate)
	api.GET("", r.handleList)
	api.GET("/:id", r.handleGet)
	api.GET("/:id/status", r.handleStatus)
	api.POST("/:id/cancel", r.handleCancel)
}

type createOrderRequest struct {
	DataType       string          `json:"dataType"`
	AreaOfInterest *ports.Geometry `json:"areaOfInterest"`
	Resolution     string          `json:"resolution"`
	FromDate       string          `json:"fromDate"`
	ToDate         string          `json:"toDate"`
}

func (r *OrderRoutes) handleCreate(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	var req createOrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	order, err := r.orders.Create(c.Request().Context(), owner, ports.OrderParams{
		DataType:       req.DataType,
		AreaOfInterest: req.AreaOfInterest,
		Resolution:     req.Resolution,
		FromDate:       req.FromDate,
		ToDate:         req.ToDate,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (r *OrderRoutes) handleList(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	limit, offset := listWindow(c)
	orders, err := r.orders.History(c.Request().Context(), owner, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (r *OrderRoutes) handleGet(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	order, err := r.orders.Get(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (r *OrderRoutes) handleStatus(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	order, err := r.orders.GetStatus(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

func (r *OrderRoutes) handleCancel(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	order, err := r.orders.Cancel(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
