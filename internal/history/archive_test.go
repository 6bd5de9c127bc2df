package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comex-report/unificador/internal/models"
)

func createTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "history.duckdb"), Options{Threads: 1}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// record builds a normalized record with the columns the archive indexes.
func record(country, applies string, tons, fob, cif any) models.Record {
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
		case "CIF (Total)":
			rec[i] = cif
		case "Producto":
			rec[i] = "Silicato de Sodio"
		}
	}
	return rec
}

func sampleRecords() []models.Record {
	return []models.Record{
		record("Chile", "SI", 20.0, 1000.0, 1100.0),
		record("Chile", "NO", 0.5, 50.0, nil),
		record("Perú", "SI", 3.0, 300.0, 330.0),
	}
}

func saveReport(t *testing.T, a *Archive, id string, created time.Time, records []models.Record) *models.Report {
	t.Helper()
	r := &models.Report{
		ID:          id,
		CreatedAt:   created,
		SourceFiles: []string{"detalle_cl.xlsx", "detalle_pe.xlsx"},
		RowCount:    len(records),
		FileID:      "file-" + id,
	}
	require.NoError(t, a.Record(context.Background(), r, records))
	return r
}

func TestArchive_RecordAndGet(t *testing.T) {
	a := createTestArchive(t)
	ctx := context.Background()
	saveReport(t, a, "r1", time.Now().UTC().Truncate(time.Second), sampleRecords())

	got, err := a.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, 3, got.RowCount)
	assert.Equal(t, "file-r1", got.FileID)
	assert.Equal(t, []string{"detalle_cl.xlsx", "detalle_pe.xlsx"}, got.SourceFiles)
	assert.Equal(t, map[string]int{"Chile": 2, "Perú": 1}, got.Countries)

	_, err = a.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_List(t *testing.T) {
	a := createTestArchive(t)
	base := time.Now().UTC().Truncate(time.Second)
	saveReport(t, a, "old", base.Add(-time.Hour), sampleRecords())
	saveReport(t, a, "new", base, sampleRecords())

	reports, err := a.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "new", reports[0].ID)
	assert.Equal(t, "old", reports[1].ID)

	reports, err = a.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestArchive_Rows(t *testing.T) {
	a := createTestArchive(t)
	ctx := context.Background()
	saveReport(t, a, "r1", time.Now(), sampleRecords())

	page, total, err := a.Rows(ctx, "r1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Chile", page[0].Get("País"))
	assert.Equal(t, "Silicato de Sodio", page[0].Get("Producto"))
	assert.Equal(t, 20.0, page[0].Get("Toneladas Finales"))

	page, _, err = a.Rows(ctx, "r1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Perú", page[0].Get("País"))

	_, _, err = a.Rows(ctx, "missing", 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_Summary(t *testing.T) {
	a := createTestArchive(t)
	saveReport(t, a, "r1", time.Now(), sampleRecords())

	summary, err := a.Summary(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, summary, 2)

	chile := summary[0]
	assert.Equal(t, "Chile", chile.Country)
	assert.Equal(t, 2, chile.Rows)
	assert.Equal(t, 1, chile.Applicable)
	assert.InDelta(t, 20.5, chile.Tons, 1e-9)
	assert.InDelta(t, 1050.0, chile.FOB, 1e-9)
	assert.InDelta(t, 1100.0, chile.CIF, 1e-9)

	assert.Equal(t, "Perú", summary[1].Country)
	assert.Equal(t, 1, summary[1].Applicable)
}

func TestArchive_Delete(t *testing.T) {
	a := createTestArchive(t)
	ctx := context.Background()
	saveReport(t, a, "r1", time.Now(), sampleRecords())

	require.NoError(t, a.Delete(ctx, "r1"))
	_, err := a.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)

	summary, err := a.Summary(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, summary)

	assert.ErrorIs(t, a.Delete(ctx, "r1"), ErrNotFound)
}

func TestArchive_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.duckdb")
	a, err := Open(path, Options{}, zerolog.Nop())
	require.NoError(t, err)
	saveReport(t, a, "r1", time.Now(), sampleRecords())
	require.NoError(t, a.Close())

	b, err := Open(path, Options{}, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()

	reports, err := b.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "r1", reports[0].ID)
}
