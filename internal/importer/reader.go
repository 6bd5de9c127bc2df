package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/comex-report/unificador/internal/models"
)

// Reader loads an uploaded export into a table.
type Reader interface {
	// Name returns the unique name of the reader.
	Name() string
	// CanRead reports whether the reader handles the given file name.
	CanRead(filename string) bool
	// Read parses the whole file. The first row holds the column names.
	Read(filename string, r io.Reader) (*models.Table, error)
}

// Registry holds the available readers and picks one per file.
type Registry struct {
	readers []Reader
}

var globalRegistry = NewRegistry()

// NewRegistry returns a registry with the xlsx and csv readers.
func NewRegistry() *Registry {
	return &Registry{
		readers: []Reader{
			NewXLSXReader(),
			NewCSVReader(),
		},
	}
}

// GetGlobalRegistry returns the shared registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// FindReader returns the reader for a file name.
func (r *Registry) FindReader(filename string) (Reader, error) {
	for _, rd := range r.readers {
		if rd.CanRead(filename) {
			return rd, nil
		}
	}
	return nil, inputErrorf("Formato no soportado en %s", filename)
}

func hasExt(filename, ext string) bool {
	return filepath.Ext(filename) == ext
}

// buildTable turns raw string records into a table. Blank header cells get
// an "Unnamed: N" name and repeated names a ".N" suffix.
func buildTable(source string, records [][]string) *models.Table {
	t := models.NewTable(source)
	if len(records) == 0 {
		return t
	}

	seen := make(map[string]int)
	for i, h := range records[0] {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		t.Columns = append(t.Columns, name)
	}

	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(models.Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = inferCell(rec[i])
			} else {
				row[col] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
