package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/comex-report/unificador/internal/models"
	"github.com/comex-report/unificador/internal/testutil"
)

func testRecord(country, applies string, tons, fob float64) models.Record {
	rec := make(models.Record, len(models.TargetColumns))
	for i, col := range models.TargetColumns {
		switch col {
		case "País":
			rec[i] = country
		case "Aplica?":
			rec[i] = applies
		case "Toneladas Finales":
			rec[i] = tons
		case "FOB (Total)":
			rec[i] = fob
		}
	}
	return rec
}

func seedReports(t *testing.T) (*ReportsHandlerImpl, *testutil.MockArchive, *testutil.MockStorage) {
	t.Helper()
	archive := testutil.NewMockArchive()
	store := testutil.NewMockStorage()
	store.AddFile("file-1", "importaciones_unificadas.xlsx", []byte("PKworkbook"))

	records := []models.Record{
		testRecord("Chile", "SI", 25, 1000),
		testRecord("Chile", "NO", 0.5, 10),
		testRecord("Perú", "SI", 2, 200),
	}
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, archive.Record(context.Background(), &models.Report{
		ID: "r1", CreatedAt: base, SourceFiles: []string{"detalle_cl.xlsx", "detalle_pe.xlsx"},
		RowCount: 3, FileID: "file-1",
	}, records))
	require.NoError(t, archive.Record(context.Background(), &models.Report{
		ID: "r0", CreatedAt: base.Add(-time.Hour), SourceFiles: []string{"detalle_ar.xlsx"},
	}, nil))

	return NewReportsHandler(archive, store).(*ReportsHandlerImpl), archive, store
}

func newReportContext(e *echo.Echo, target, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func TestHandleListReports(t *testing.T) {
	h, _, _ := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports", "")
	require.NoError(t, h.HandleListReports(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var reports []models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "r1", reports[0].ID, "newest first")

	c, rec = newReportContext(e, "/api/reports?limit=1", "")
	require.NoError(t, h.HandleListReports(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	assert.Len(t, reports, 1)
}

func TestHandleGetReport(t *testing.T) {
	h, _, _ := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports/r1", "r1")
	require.NoError(t, h.HandleGetReport(c))
	assert.Contains(t, rec.Body.String(), `"rowCount":3`)

	c, _ = newReportContext(e, "/api/reports/nope", "nope")
	err := h.HandleGetReport(c)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	c, _ = newReportContext(e, "/api/reports/", "")
	err = h.HandleGetReport(c)
	apiErr, ok = err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestHandleDownloadReport(t *testing.T) {
	h, _, _ := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports/r1/download", "r1")
	require.NoError(t, h.HandleDownloadReport(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PKworkbook", rec.Body.String())
	assert.Equal(t, "10", rec.Header().Get(echo.HeaderContentLength))
	assert.Equal(t, `attachment; filename="importaciones_unificadas.xlsx"`, rec.Header().Get(echo.HeaderContentDisposition))

	// r0 has no stored workbook
	c, _ = newReportContext(e, "/api/reports/r0/download", "r0")
	err := h.HandleDownloadReport(c)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestHandleDeleteReport(t *testing.T) {
	h, archive, store := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports/r1", "r1")
	require.NoError(t, h.HandleDeleteReport(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, archive.RecordCount())
	assert.Zero(t, store.GetFileCount(), "stored workbook removed")

	c, _ = newReportContext(e, "/api/reports/r1", "r1")
	apiErr, ok := h.HandleDeleteReport(c).(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	// r0 has no stored workbook
	c, rec = newReportContext(e, "/api/reports/r0", "r0")
	require.NoError(t, h.HandleDeleteReport(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, archive.RecordCount())
}

func TestHandleGetRows(t *testing.T) {
	h, _, _ := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports/r1/rows?page=2&pageSize=2", "r1")
	require.NoError(t, h.HandleGetRows(c))

	var resp struct {
		Columns  []string `json:"columns"`
		Rows     [][]any  `json:"rows"`
		Page     int      `json:"page"`
		PageSize int      `json:"pageSize"`
		Total    int      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.TargetColumns, resp.Columns)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Perú", resp.Rows[0][1])

	c, _ = newReportContext(e, "/api/reports/nope/rows", "nope")
	_, ok := h.HandleGetRows(c).(*APIError)
	assert.True(t, ok)
}

func TestHandleGetRowsMsgpack(t *testing.T) {
	h, _, _ := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports/r1/rows/msgpack", "r1")
	require.NoError(t, h.HandleGetRowsMsgpack(c))
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var resp map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["rows"], 3)
	assert.EqualValues(t, 3, resp["total"])
}

func TestHandleGetSummary(t *testing.T) {
	h, _, _ := seedReports(t)
	e := echo.New()

	c, rec := newReportContext(e, "/api/reports/r1/summary", "r1")
	require.NoError(t, h.HandleGetSummary(c))

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp.ReportID)
	require.Len(t, resp.Countries, 2)
	assert.Equal(t, "Chile", resp.Countries[0].Country)
	assert.Equal(t, 2, resp.Countries[0].Rows)
	assert.Equal(t, 1, resp.Countries[0].Applicable)
	assert.InDelta(t, 25.5, resp.Countries[0].Tons, 1e-9)
	assert.Equal(t, 3, resp.Total.Rows)
	assert.Equal(t, 2, resp.Total.Applicable)
	assert.InDelta(t, 1210, resp.Total.FOB, 1e-9)
}

func TestReportRoutes(t *testing.T) {
	_, archive, store := seedReports(t)
	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e, NewHandlers(&Dependencies{Archive: archive, Store: store, Version: "test"}))

	for _, path := range []string{"/api/reports", "/api/reports/r1", "/api/reports/r1/summary", "/api/reports/r1/rows", "/api/health"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail":"report not found: missing"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/reports/r1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/r1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
