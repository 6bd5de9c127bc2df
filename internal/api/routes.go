// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/comex-report/unificador/internal/metrics"
	"github.com/comex-report/unificador/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Unifier Unifier
	Store   storage.Store
	Archive ReportArchive
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Unify   UnifyHandler
	Reports ReportsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version),
		Unify:   NewUnifyHandler(deps.Unifier, deps.Store, deps.Archive, deps.Metrics, deps.Logger),
		Reports: NewReportsHandler(deps.Archive, deps.Store),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// The upload form posts here
	e.POST("/unificar", handlers.Unify.HandleUnify)

	api := e.Group("/api")
	api.GET("/health", handlers.Health.HandleHealth)

	// Archived reports
	reports := api.Group("/reports")
	reports.GET("", handlers.Reports.HandleListReports)
	reports.GET("/:id", handlers.Reports.HandleGetReport)
	reports.GET("/:id/download", handlers.Reports.HandleDownloadReport)
	reports.GET("/:id/rows", handlers.Reports.HandleGetRows)
	reports.GET("/:id/rows/msgpack", handlers.Reports.HandleGetRowsMsgpack)
	reports.GET("/:id/summary", handlers.Reports.HandleGetSummary)
	reports.DELETE("/:id", handlers.Reports.HandleDeleteReport)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
