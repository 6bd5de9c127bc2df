package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/comex-report/unificador/internal/history"
	"github.com/comex-report/unificador/internal/models"
)

// MockArchive keeps reports in memory. Unknown ids yield history.ErrNotFound.
type MockArchive struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
	rows    map[string][]models.Record

	// RecordErr, when set, is returned by Record
	RecordErr error
}

// NewMockArchive creates an empty archive.
func NewMockArchive() *MockArchive {
	return &MockArchive{
		reports: make(map[string]*models.Report),
		rows:    make(map[string][]models.Record),
	}
}

func (m *MockArchive) Record(ctx context.Context, report *models.Report, records []models.Record) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r := *report
	m.reports[r.ID] = &r
	m.rows[r.ID] = append([]models.Record(nil), records...)
	return nil
}

func (m *MockArchive) List(ctx context.Context, limit int) ([]*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reports := make([]*models.Report, 0, len(m.reports))
	for _, r := range m.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (m *MockArchive) Get(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	return r, nil
}

func (m *MockArchive) Rows(ctx context.Context, id string, page, pageSize int) ([]models.Record, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.rows[id]
	if !ok {
		return nil, 0, history.ErrNotFound
	}
	start := (page - 1) * pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], len(rows), nil
}

func (m *MockArchive) Summary(ctx context.Context, id string) ([]models.CountrySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byCountry := make(map[string]*models.CountrySummary)
	for _, rec := range m.rows[id] {
		country, _ := rec.Get("País").(string)
		s, ok := byCountry[country]
		if !ok {
			s = &models.CountrySummary{Country: country}
			byCountry[country] = s
		}
		s.Rows++
		if rec.Get("Aplica?") == "SI" {
			s.Applicable++
		}
		s.Tons += asFloat(rec.Get("Toneladas Finales"))
		s.FOB += asFloat(rec.Get("FOB (Total)"))
		s.CIF += asFloat(rec.Get("CIF (Total)"))
	}

	summary := make([]models.CountrySummary, 0, len(byCountry))
	for _, s := range byCountry {
		summary = append(summary, *s)
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Country < summary[j].Country })
	return summary, nil
}

func (m *MockArchive) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[id]; !ok {
		return history.ErrNotFound
	}
	delete(m.reports, id)
	delete(m.rows, id)
	return nil
}

// RecordCount returns the number of archived reports.
func (m *MockArchive) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
