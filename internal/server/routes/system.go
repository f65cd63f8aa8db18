package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SystemRoutes registers operational endpoints.
type SystemRoutes struct{}

// NewSystemRoutes constructs system routes.
func NewSystemRoutes() *SystemRoutes {
	return &SystemRoutes{}
}

// RegisterRoutes registers the health endpoint.
func (r *SystemRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/health", handleHealth)
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
