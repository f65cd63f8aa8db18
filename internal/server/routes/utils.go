package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/orbitalhq/geosync/internal/app/ports"
	"github.com/orbitalhq/geosync/internal/app/services"
	"github.com/orbitalhq/geosync/internal/observability"
)

// ownerHeader identifies the calling account. Authentication proper sits in
// front of this service.
const ownerHeader = "X-Owner-ID"

var validate = validator.New()

func requestOwner(c echo.Context) (string, error) {
	owner := strings.TrimSpace(c.Request().Header.Get(ownerHeader))
	if owner == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "missing "+ownerHeader+" header")
	}
	ctx := observability.WithRequestIdentity(c.Request().Context(), owner)
	c.SetRequest(c.Request().WithContext(ctx))
	return owner, nil
}

func bindAndValidate(c echo.Context, target any) error {
	if err := c.Bind(target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := validate.Struct(target); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func listWindow(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

// writeServiceError maps service-layer sentinels onto HTTP status codes.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, services.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, services.ErrConflict):
		return c.JSON(http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, ports.ErrProviderUnavailable):
		return c.JSON(http.StatusBadGateway, errorBody("provider unavailable"))
	default:
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
