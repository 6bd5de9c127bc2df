package main

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comex-report/unificador/internal/api"
	"github.com/comex-report/unificador/internal/config"
	"github.com/comex-report/unificador/internal/history"
	"github.com/comex-report/unificador/internal/importer"
	"github.com/comex-report/unificador/internal/metrics"
	"github.com/comex-report/unificador/internal/models"
	"github.com/comex-report/unificador/internal/storage"
	"github.com/comex-report/unificador/internal/testutil"
)

func TestNewServer_Routes(t *testing.T) {
	cfg := config.DefaultConfig()
	deps := &api.Dependencies{
		Unifier: importer.NewProcessor(nil, nil),
		Store:   testutil.NewMockStorage(),
		Archive: testutil.NewMockArchive(),
		Metrics: metrics.New(false),
		Logger:  zerolog.Nop(),
		Version: "test",
	}
	e := newServer(cfg, deps, zerolog.Nop())

	for _, path := range []string{"/", "/api/health", "/api/reports", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, _ := w.CreateFormFile("files", "detalle_uy.csv")
	part.Write([]byte("Fecha,Cantidad,Unidad\n2024-05-02,3,TONELADAS\n"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/unificar", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, importer.ContentType, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"), "workbooks are not gzipped")
}

func TestRestoreStoredReports(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	archive, err := history.Open(filepath.Join(dir, "history.duckdb"), history.Options{}, zerolog.Nop())
	require.NoError(t, err)
	defer archive.Close()

	fileID := "0b7c7c1e-5d2a-4c43-9a55-3f1f0f6d2c11"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", fileID), []byte("PK"), 0644))

	ctx := context.Background()
	require.NoError(t, archive.Record(ctx, &models.Report{ID: "with-file", CreatedAt: time.Now(), SourceFiles: []string{"a"}, FileID: fileID}, nil))
	require.NoError(t, archive.Record(ctx, &models.Report{ID: "lost-file", CreatedAt: time.Now(), SourceFiles: []string{"b"}, FileID: "gone"}, nil))

	restoreStoredReports(archive, store, zerolog.Nop())

	info, err := store.Get(fileID)
	require.NoError(t, err)
	assert.Equal(t, importer.OutputFilename, info.Name)
	assert.Equal(t, int64(2), info.Size)

	_, err = store.Get("gone")
	assert.Error(t, err)
}
