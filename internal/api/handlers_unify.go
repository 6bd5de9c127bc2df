// handlers_unify.go - Spreadsheet unification endpoint
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/comex-report/unificador/internal/importer"
	"github.com/comex-report/unificador/internal/metrics"
	"github.com/comex-report/unificador/internal/models"
	"github.com/comex-report/unificador/internal/storage"
)

// FilesField is the multipart field carrying the uploads
const FilesField = "files"

// HeaderReportID carries the id of the archived report
const HeaderReportID = "X-Report-Id"

// UnifyHandlerImpl implements the UnifyHandler interface
type UnifyHandlerImpl struct {
	unifier Unifier
	store   storage.Store
	archive ReportArchive
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewUnifyHandler creates a new unify handler. store, archive and m may be
// nil, which disables archiving and metrics.
func NewUnifyHandler(unifier Unifier, store storage.Store, archive ReportArchive, m *metrics.Metrics, log zerolog.Logger) UnifyHandler {
	return &UnifyHandlerImpl{
		unifier: unifier,
		store:   store,
		archive: archive,
		metrics: m,
		log:     log,
	}
}

// HandleUnify normalizes the uploaded exports and returns one workbook
func (h *UnifyHandlerImpl) HandleUnify(c echo.Context) error {
	start := time.Now()

	headers, apiErr := uploadedFiles(c)
	if apiErr != nil {
		h.observe(apiErr.Status, nil, 0, start)
		return apiErr
	}

	sources := make([]importer.Source, len(headers))
	for i, fh := range headers {
		sources[i] = uploadedFile{fh}
	}

	result, err := h.unifier.Unify(sources)
	if err != nil {
		apiErr = NewUnifyError(err)
		h.observe(apiErr.Status, nil, 0, start)
		return apiErr
	}

	var buf bytes.Buffer
	if err := importer.WriteWorkbook(&buf, result.Records); err != nil {
		h.observe(http.StatusInternalServerError, nil, 0, start)
		return NewInternalError("Error generando el archivo unificado", err)
	}

	h.observe(http.StatusOK, result.Countries, len(result.Records), start)

	if report := h.archiveRun(c.Request().Context(), result, buf.Bytes()); report != nil {
		c.Response().Header().Set(HeaderReportID, report.ID)
	}

	h.log.Info().
		Strs("files", result.Sources).
		Int("rows", len(result.Records)).
		Dur("elapsed", time.Since(start)).
		Msg("unification complete")

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", importer.OutputFilename))
	return c.Blob(http.StatusOK, importer.ContentType, buf.Bytes())
}

// uploadedFiles returns the parts of the files field. A body that is not
// multipart carries no files.
func uploadedFiles(c echo.Context) ([]*multipart.FileHeader, *APIError) {
	form, err := c.MultipartForm()
	if err == nil {
		return form.File[FilesField], nil
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return nil, nil
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
		return nil, NewTooLargeError(err)
	}
	return nil, NewBadRequestError("No se pudieron leer los archivos subidos", err)
}

// archiveRun stores the workbook and records the run. Failures are logged
// and never fail the request.
func (h *UnifyHandlerImpl) archiveRun(ctx context.Context, result *importer.Result, workbook []byte) *models.Report {
	if h.store == nil || h.archive == nil {
		return nil
	}

	info, err := h.store.Save(importer.OutputFilename, bytes.NewReader(workbook))
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to store unified workbook")
		return nil
	}

	report := &models.Report{
		ID:          uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		SourceFiles: result.Sources,
		RowCount:    len(result.Records),
		Countries:   result.Countries,
		FileID:      info.ID,
	}
	if err := h.archive.Record(ctx, report, result.Records); err != nil {
		h.log.Warn().Err(err).Str("report", report.ID).Msg("failed to archive report")
		h.store.Delete(info.ID)
		return nil
	}
	return report
}

func (h *UnifyHandlerImpl) observe(status int, countries map[string]int, rows int, start time.Time) {
	if h.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	switch {
	case status >= 500:
		outcome = metrics.OutcomeServerError
	case status >= 400:
		outcome = metrics.OutcomeInputError
	}
	h.metrics.ObserveUnify(outcome, countries, rows, time.Since(start))
}

// uploadedFile adapts a multipart part to importer.Source
type uploadedFile struct {
	fh *multipart.FileHeader
}

func (u uploadedFile) Name() string {
	return u.fh.Filename
}

func (u uploadedFile) Open() (io.ReadCloser, error) {
	return u.fh.Open()
}
