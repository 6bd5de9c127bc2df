// handlers_reports.go - Archived report handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/comex-report/unificador/internal/history"
	"github.com/comex-report/unificador/internal/importer"
	"github.com/comex-report/unificador/internal/models"
	"github.com/comex-report/unificador/internal/storage"
)

// ReportsHandlerImpl implements the ReportsHandler interface
type ReportsHandlerImpl struct {
	archive ReportArchive
	store   storage.Store
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(archive ReportArchive, store storage.Store) ReportsHandler {
	return &ReportsHandlerImpl{
		archive: archive,
		store:   store,
	}
}

// HandleListReports returns the most recent reports
func (h *ReportsHandlerImpl) HandleListReports(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	reports, err := h.archive.List(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list reports", err)
	}
	return c.JSON(http.StatusOK, reports)
}

// HandleGetReport returns one report
func (h *ReportsHandlerImpl) HandleGetReport(c echo.Context) error {
	report, err := h.getReport(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// HandleDownloadReport streams the stored workbook of a report
func (h *ReportsHandlerImpl) HandleDownloadReport(c echo.Context) error {
	report, err := h.getReport(c)
	if err != nil {
		return err
	}
	if report.FileID == "" {
		return NewNotFoundError("workbook", report.ID)
	}

	info, err := h.store.Get(report.FileID)
	if err != nil {
		return NewNotFoundError("workbook", report.ID)
	}
	rc, err := h.store.Open(info.ID)
	if err != nil {
		return NewNotFoundError("workbook", report.ID)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", importer.OutputFilename))
	return c.Stream(http.StatusOK, importer.ContentType, rc)
}

// HandleGetRows returns one page of a report's rows
func (h *ReportsHandlerImpl) HandleGetRows(c echo.Context) error {
	resp, err := h.rowsPage(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetRowsMsgpack returns one page of a report's rows in MessagePack format
func (h *ReportsHandlerImpl) HandleGetRowsMsgpack(c echo.Context) error {
	resp, err := h.rowsPage(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetSummary returns per-country totals of a report
func (h *ReportsHandlerImpl) HandleGetSummary(c echo.Context) error {
	report, err := h.getReport(c)
	if err != nil {
		return err
	}

	countries, err := h.archive.Summary(c.Request().Context(), report.ID)
	if err != nil {
		return NewInternalError("failed to summarize report", err)
	}

	total := models.CountrySummary{Country: "Total"}
	for _, s := range countries {
		total.Rows += s.Rows
		total.Applicable += s.Applicable
		total.Tons += s.Tons
		total.FOB += s.FOB
		total.CIF += s.CIF
	}

	return c.JSON(http.StatusOK, summaryResponse{
		ReportID:  report.ID,
		Countries: countries,
		Total:     total,
	})
}

// HandleDeleteReport removes a report, its rows and its stored workbook
func (h *ReportsHandlerImpl) HandleDeleteReport(c echo.Context) error {
	report, err := h.getReport(c)
	if err != nil {
		return err
	}

	err = h.archive.Delete(c.Request().Context(), report.ID)
	if errors.Is(err, history.ErrNotFound) {
		return NewNotFoundError("report", report.ID)
	}
	if err != nil {
		return NewInternalError("failed to delete report", err)
	}

	if report.FileID != "" {
		if err := h.store.Delete(report.FileID); err != nil {
			log.Warn().Err(err).Str("report", report.ID).Msg("stored workbook not removed")
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReportsHandlerImpl) getReport(c echo.Context) (*models.Report, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	report, err := h.archive.Get(c.Request().Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		return nil, NewNotFoundError("report", id)
	}
	if err != nil {
		return nil, NewInternalError("failed to load report", err)
	}
	return report, nil
}

func (h *ReportsHandlerImpl) rowsPage(c echo.Context) (*rowsResponse, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 100
	}

	rows, total, err := h.archive.Rows(c.Request().Context(), id, page, pageSize)
	if errors.Is(err, history.ErrNotFound) {
		return nil, NewNotFoundError("report", id)
	}
	if err != nil {
		return nil, NewInternalError("failed to load rows", err)
	}

	return &rowsResponse{
		Columns:  models.TargetColumns,
		Rows:     rows,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

type rowsResponse struct {
	Columns  []string        `json:"columns" msgpack:"columns"`
	Rows     []models.Record `json:"rows" msgpack:"rows"`
	Page     int             `json:"page" msgpack:"page"`
	PageSize int             `json:"pageSize" msgpack:"pageSize"`
	Total    int             `json:"total" msgpack:"total"`
}

type summaryResponse struct {
	ReportID  string                  `json:"reportId"`
	Countries []models.CountrySummary `json:"countries"`
	Total     models.CountrySummary   `json:"total"`
}
