// Package models contains domain types for the COMEX import unifier.
package models

// TargetColumns is the layout of the unified workbook, in output order.
var TargetColumns = []string{
	"Aplica?", "País", "Impo/Expo", "Producto", "Año", "Mes", "Año.Mes", "DUA", "Fecha",
	"Código NCM", "País de Origen", "País de Procedencia", "Aduana", "Puerto de Embarque",
	"Vía Transporte", "Empresa Transportista", "FOB (Total)", "CIF (Total)",
	"FOB (Unitario Tn)", "CIF (Unitario Tn)", "Flete (Total)", "Seguro (Total)",
	"Cantidad Comercial", "Unidad de Medida", "Toneladas Finales", "Importador",
	"Proveedor", "Marca", "Descripción de Mercadería",
}

// Row is a single record keyed by column name.
// Values are nil, string, float64 or int.
type Row map[string]any

// Has reports whether the column exists in the row, even if empty.
func (r Row) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// Table is a sheet read from an uploaded file.
type Table struct {
	Source  string   `json:"source"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates an empty table for the given source file.
func NewTable(source string) *Table {
	return &Table{
		Source:  source,
		Columns: make([]string, 0),
		Rows:    make([]Row, 0),
	}
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn registers a column name if it is not present yet.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// Record is a normalized row projected onto TargetColumns.
type Record []any

// Get returns the value of a target column, or nil if unknown.
func (r Record) Get(col string) any {
	for i, c := range TargetColumns {
		if c == col && i < len(r) {
			return r[i]
		}
	}
	return nil
}
