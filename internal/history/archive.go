// Package history archives unification runs in DuckDB so earlier reports can
// be listed, paged through and summarized per country.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/comex-report/unificador/internal/models"
)

// ErrNotFound is returned for unknown report ids.
var ErrNotFound = errors.New("report not found")

// Options tunes the embedded database.
type Options struct {
	Threads     int
	MemoryLimit string
}

// Archive stores reports and their rows.
type Archive struct {
	db     *sql.DB
	dbPath string
	log    zerolog.Logger
}

// Open opens (or creates) the archive database at dbPath.
func Open(dbPath string, opts Options, log zerolog.Logger) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warn().Err(err).Str("pragma", pragma).Msg("archive pragma failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("archive opened")
	return &Archive{db: db, dbPath: dbPath, log: log}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id         VARCHAR PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			sources    VARCHAR NOT NULL,
			row_count  INTEGER NOT NULL,
			file_id    VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS report_rows (
			report_id VARCHAR NOT NULL,
			idx       INTEGER NOT NULL,
			pais      VARCHAR,
			aplica    VARCHAR,
			toneladas DOUBLE,
			fob       DOUBLE,
			cif       DOUBLE,
			payload   BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating archive schema: %w", err)
		}
	}
	return nil
}

// Record stores a report and its rows. Rows are written first so a report
// is never visible without them.
func (a *Archive) Record(ctx context.Context, report *models.Report, records []models.Record) error {
	start := time.Now()

	if err := a.appendRows(ctx, report.ID, records); err != nil {
		a.deleteRows(report.ID)
		return err
	}

	sources, err := json.Marshal(report.SourceFiles)
	if err != nil {
		a.deleteRows(report.ID)
		return fmt.Errorf("encoding sources: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO reports (id, created_at, sources, row_count, file_id) VALUES (?, ?, ?, ?, ?)`,
		report.ID, report.CreatedAt, string(sources), report.RowCount, nullString(report.FileID))
	if err != nil {
		a.deleteRows(report.ID)
		return fmt.Errorf("inserting report: %w", err)
	}

	a.log.Debug().
		Str("report", report.ID).
		Int("rows", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("report archived")
	return nil
}

// appendRows writes the rows with the native Appender API.
func (a *Archive) appendRows(ctx context.Context, reportID string, records []models.Record) error {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "report_rows")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, rec := range records {
			payload, err := msgpack.Marshal([]any(rec))
			if err != nil {
				return fmt.Errorf("encoding row %d: %w", i, err)
			}
			err = appender.AppendRow(
				reportID,
				int32(i),
				stringOrNil(rec.Get("País")),
				stringOrNil(rec.Get("Aplica?")),
				floatOrNil(rec.Get("Toneladas Finales")),
				floatOrNil(rec.Get("FOB (Total)")),
				floatOrNil(rec.Get("CIF (Total)")),
				payload,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
}

func (a *Archive) deleteRows(reportID string) {
	if _, err := a.db.Exec(`DELETE FROM report_rows WHERE report_id = ?`, reportID); err != nil {
		a.log.Warn().Err(err).Str("report", reportID).Msg("cleaning up rows failed")
	}
}

// List returns the most recent reports, newest first. A limit of 0 returns
// every report.
func (a *Archive) List(ctx context.Context, limit int) ([]*models.Report, error) {
	query := `SELECT id, created_at, sources, row_count, file_id FROM reports ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*models.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Get returns one report with its per-country row counts.
func (a *Archive) Get(ctx context.Context, id string) (*models.Report, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, created_at, sources, row_count, file_id FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	summary, err := a.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Countries = make(map[string]int, len(summary))
	for _, s := range summary {
		report.Countries[s.Country] = s.Rows
	}
	return report, nil
}

// Rows returns one page of a report's rows (page is 1-based) and the total
// row count.
func (a *Archive) Rows(ctx context.Context, id string, page, pageSize int) ([]models.Record, int, error) {
	var total int
	err := a.db.QueryRowContext(ctx, `SELECT row_count FROM reports WHERE id = ?`, id).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("counting rows: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := a.db.QueryContext(ctx,
		`SELECT payload FROM report_rows WHERE report_id = ? ORDER BY idx LIMIT ? OFFSET ?`,
		id, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0, pageSize)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, err
		}
		var values []any
		if err := msgpack.Unmarshal(payload, &values); err != nil {
			return nil, 0, fmt.Errorf("decoding row: %w", err)
		}
		records = append(records, models.Record(values))
	}
	return records, total, rows.Err()
}

// Summary aggregates a report per country.
func (a *Archive) Summary(ctx context.Context, id string) ([]models.CountrySummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT COALESCE(pais, ''),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE aplica = 'SI'),
		       COALESCE(SUM(toneladas), 0),
		       COALESCE(SUM(fob), 0),
		       COALESCE(SUM(cif), 0)
		FROM report_rows
		WHERE report_id = ?
		GROUP BY 1
		ORDER BY 1`, id)
	if err != nil {
		return nil, fmt.Errorf("summarizing report: %w", err)
	}
	defer rows.Close()

	summary := make([]models.CountrySummary, 0)
	for rows.Next() {
		var s models.CountrySummary
		if err := rows.Scan(&s.Country, &s.Rows, &s.Applicable, &s.Tons, &s.FOB, &s.CIF); err != nil {
			return nil, err
		}
		summary = append(summary, s)
	}
	return summary, rows.Err()
}

// Delete removes a report and its rows.
func (a *Archive) Delete(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := a.db.ExecContext(ctx, `DELETE FROM report_rows WHERE report_id = ?`, id); err != nil {
		return fmt.Errorf("deleting report rows: %w", err)
	}
	return nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*models.Report, error) {
	var (
		r       models.Report
		sources string
		fileID  sql.NullString
	)
	if err := s.Scan(&r.ID, &r.CreatedAt, &sources, &r.RowCount, &fileID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &r.SourceFiles); err != nil {
		return nil, fmt.Errorf("decoding sources of %s: %w", r.ID, err)
	}
	r.FileID = fileID.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringOrNil(v any) any {
	if s, ok := v.(string); ok {
		return s
	}
	return nil
}

func floatOrNil(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return nil
}
