// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/comex-report/unificador/internal/importer"
	"github.com/comex-report/unificador/internal/models"
)

// UnifyHandler handles the spreadsheet upload endpoint
type UnifyHandler interface {
	HandleUnify(c echo.Context) error
}

// ReportsHandler serves archived unification runs
type ReportsHandler interface {
	HandleListReports(c echo.Context) error
	HandleGetReport(c echo.Context) error
	HandleDownloadReport(c echo.Context) error
	HandleGetRows(c echo.Context) error
	HandleGetRowsMsgpack(c echo.Context) error
	HandleGetSummary(c echo.Context) error
	HandleDeleteReport(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Unifier turns uploaded exports into one result
type Unifier interface {
	Unify(sources []importer.Source) (*importer.Result, error)
}

// ReportArchive records and queries unification runs.
// Unknown ids yield history.ErrNotFound.
type ReportArchive interface {
	Record(ctx context.Context, report *models.Report, records []models.Record) error
	List(ctx context.Context, limit int) ([]*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	Rows(ctx context.Context, id string, page, pageSize int) ([]models.Record, int, error)
	Summary(ctx context.Context, id string) ([]models.CountrySummary, error)
	Delete(ctx context.Context, id string) error
}
