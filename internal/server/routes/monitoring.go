package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/app/services"
)

// MonitoringRoutes registers the monitoring lifecycle endpoints.
type MonitoringRoutes struct {
	monitoring *services.MonitoringLifecycle
}

// NewMonitoringRoutes constructs monitoring routes.
func NewMonitoringRoutes(monitoring *services.MonitoringLifecycle) *MonitoringRoutes {
	return &MonitoringRoutes{monitoring: monitoring}
}

// RegisterRoutes registers monitoring endpoints.
func (r *MonitoringRoutes) RegisterRoutes(s *echo.Echo) {
	api := s.Group("/api/v1/monitoring")

	api.POST("", r.handleCreate)
	api.GET("", r.handleList)
	api.GET("/:id", r.handleGet)
	api.GET("/:id/status", r.handleStatus)
	api.PATCH("/:id", r.handleUpdate)
	api.POST("/:id/activate", r.handleActivate)
	api.POST("/:id/deactivate", r.handleDeactivate)
	api.DELETE("/:id", r.handleDelete)
}

type createMonitoringRequest struct {
	AreaOfInterest ports.Geometry         `json:"areaOfInterest"`
	WebhookURL     string                 `json:"webhookUrl" validate:"omitempty,url"`
	Config         ports.MonitoringConfig `json:"config"`
}

func (r *MonitoringRoutes) handleCreate(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	var req createMonitoringRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	monitoring, err := r.monitoring.Create(c.Request().Context(), owner, services.CreateMonitoringInput{
		AreaOfInterest: req.AreaOfInterest,
		WebhookURL:     req.WebhookURL,
		Config:         req.Config,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, monitoring)
}

func (r *MonitoringRoutes) handleList(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	limit, offset := listWindow(c)
	monitorings, err := r.monitoring.List(c.Request().Context(), owner, limit, offset)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, monitorings)
}

func (r *MonitoringRoutes) handleGet(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	monitoring, err := r.monitoring.Get(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, monitoring)
}

func (r *MonitoringRoutes) handleStatus(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	monitoring, err := r.monitoring.GetStatus(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, monitoring)
}

type updateMonitoringRequest struct {
	AreaOfInterest *ports.Geometry         `json:"areaOfInterest"`
	WebhookURL     *string                 `json:"webhookUrl"`
	Config         *ports.MonitoringConfig `json:"config"`
	Status         *string                 `json:"status"`
}

func (r *MonitoringRoutes) handleUpdate(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	var req updateMonitoringRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	input := services.UpdateMonitoringInput{
		AreaOfInterest: req.AreaOfInterest,
		WebhookURL:     req.WebhookURL,
		Config:         req.Config,
	}
	if req.Status != nil {
		status := ports.MonitoringStatus(*req.Status)
		input.Status = &status
	}

	monitoring, err := r.monitoring.Update(c.Request().Context(), c.Param("id"), owner, input)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, monitoring)
}

func (r *MonitoringRoutes) handleActivate(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	monitoring, err := r.monitoring.Activate(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, monitoring)
}

func (r *MonitoringRoutes) handleDeactivate(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	monitoring, err := r.monitoring.Deactivate(c.Request().Context(), c.Param("id"), owner)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, monitoring)
}

func (r *MonitoringRoutes) handleDelete(c echo.Context) error {
	owner, err := requestOwner(c)
	if err != nil {
		return err
	}
	if err := r.monitoring.Delete(c.Request().Context(), c.Param("id"), owner); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
