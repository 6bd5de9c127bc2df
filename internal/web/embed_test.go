package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedFiles(t *testing.T) {
	assert.True(t, HasEmbeddedFiles())
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	require.NoError(t, RegisterStaticRoutes(e))

	tests := []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/index.html", http.StatusOK},
		{"/some/client/route", http.StatusOK},
		{"/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				body := rec.Body.String()
				assert.Contains(t, body, `accept=".xlsx,.csv"`)
				assert.Contains(t, body, "Unificar y Descargar")
				assert.Contains(t, body, `fetch("/unificar"`)
				// the report list refresh stays outside the request's loading window
				assert.NotContains(t, body, ".then(loadReports)")
			}
		})
	}
}
