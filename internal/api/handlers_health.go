// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/comex-report/unificador/internal/importer"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	codes := make([]string, 0, len(importer.Countries))
	for code := range importer.Countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"countries": codes,
	})
}
