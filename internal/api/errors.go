// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/comex-report/unificador/internal/importer"
)

// APIError represents a structured API error response. Detail is shown to
// the user as is.
type APIError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Cause  error  `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Unwrap returns the underlying cause
func (e *APIError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status of the error
func (e *APIError) StatusCode() int {
	return e.Status
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(detail string, cause error) *APIError {
	return &APIError{
		Status: http.StatusBadRequest,
		Code:   "BAD_REQUEST",
		Detail: detail,
		Cause:  cause,
	}
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status: http.StatusBadRequest,
		Code:   "VALIDATION_ERROR",
		Detail: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status: http.StatusNotFound,
		Code:   "NOT_FOUND",
		Detail: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewTooLargeError creates a 413 error for an upload over the body limit
func NewTooLargeError(cause error) *APIError {
	return &APIError{
		Status: http.StatusRequestEntityTooLarge,
		Code:   "FILES_TOO_LARGE",
		Detail: "Los archivos superan el tamaño máximo permitido",
		Cause:  cause,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(detail string, cause error) *APIError {
	return &APIError{
		Status: http.StatusInternalServerError,
		Code:   "INTERNAL_ERROR",
		Detail: detail,
		Cause:  cause,
	}
}

// NewUnifyError maps an importer failure to its response. Input problems are
// the client's fault; anything else failed while processing a file.
func NewUnifyError(err error) *APIError {
	var (
		inErr   *importer.InputError
		fileErr *importer.FileError
	)
	switch {
	case errors.Is(err, importer.ErrNoFiles):
		return &APIError{Status: http.StatusBadRequest, Code: "NO_FILES", Detail: importer.ErrNoFiles.Msg}
	case errors.Is(err, importer.ErrNoData):
		return &APIError{Status: http.StatusBadRequest, Code: "NO_DATA", Detail: importer.ErrNoData.Msg}
	case errors.As(err, &inErr):
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_FILE", Detail: inErr.Msg}
	case errors.As(err, &fileErr):
		return &APIError{
			Status: http.StatusInternalServerError,
			Code:   "PROCESSING_ERROR",
			Detail: fileErr.Error(),
			Cause:  fileErr.Err,
		}
	}
	return NewInternalError(fmt.Sprintf("Error procesando archivos: %v", err), err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		if e.Code == http.StatusRequestEntityTooLarge {
			apiErr = NewTooLargeError(e)
			break
		}
		apiErr = &APIError{
			Status: e.Code,
			Code:   "HTTP_ERROR",
			Detail: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = &APIError{
			Status: http.StatusInternalServerError,
			Code:   "UNKNOWN_ERROR",
			Detail: "An unexpected error occurred",
			Cause:  err,
		}
	}

	if apiErr.Status >= 500 {
		log.Error().
			Err(apiErr.Cause).
			Str("code", apiErr.Code).
			Str("path", c.Request().URL.Path).
			Msg(apiErr.Detail)
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}
