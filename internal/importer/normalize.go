package importer

import (
	"math"
	"strings"

	"github.com/comex-report/unificador/internal/models"
)

// Fixed values of the unified report.
const (
	ImpoExpo   = "Importación"
	Producto   = "Silicato de Sodio"
	CodigoNCM  = "2839190000"
	Toneladas  = "TONELADAS"
	Kilogramos = "KILOGRAMOS"

	TransportLand    = "Terrestre"
	TransportSea     = "Marítimo"
	TransportAir     = "Aéreo"
	TransportUnknown = "No disponible"
)

var (
	landKeywords = []string{"camión", "camion", "terrest", "ruta", "carretero"}
	seaKeywords  = []string{"mar", "acuático", "acuatico", "buque", "barco", "nav"}
	airKeywords  = []string{"aer", "avión", "avion", "aéreo", "aereo"}
	kgKeywords   = []string{"KILOGRAMO", "KILOGRAMO BRUTO", "KILOS NETOS", "KG"}
)

// ClassifyTransport maps a free text transport description to one of the
// four transport categories.
func ClassifyTransport(v any) string {
	if isMissing(v) {
		return TransportUnknown
	}
	s := strings.ToLower(cellText(v))
	switch {
	case containsAny(s, landKeywords):
		return TransportLand
	case containsAny(s, seaKeywords):
		return TransportSea
	case containsAny(s, airKeywords):
		return TransportAir
	}
	return TransportUnknown
}

// NormalizeUnit maps ton and kilogram spellings to TONELADAS and KILOGRAMOS.
// Other units are returned unchanged.
func NormalizeUnit(v any) any {
	if isMissing(v) {
		return v
	}
	s := strings.ToUpper(strings.TrimSpace(cellText(v)))
	switch {
	case strings.Contains(s, "TONELADA"):
		return Toneladas
	case containsAny(s, kgKeywords):
		return Kilogramos
	}
	return v
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// step is one column-wide transformation of a table.
type step func(t *models.Table, country string, cr CountryRules)

var steps = []step{
	setCountry,
	splitDate,
	setConstants,
	classifyTransport,
	normalizeUnits,
	setQuantity,
	computeTons,
	mapCosts,
	deriveFOBUnit,
	copyColumns,
	fillMissing,
	flagApplicable,
}

// Normalize applies the country rules to a table and projects it onto
// models.TargetColumns. The input table is left untouched.
func Normalize(in *models.Table, country string, rules *Rules) []models.Record {
	t := cloneTable(in)
	cr := rules.For(country)
	for _, s := range steps {
		s(t, country, cr)
	}

	records := make([]models.Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(models.Record, len(models.TargetColumns))
		for i, col := range models.TargetColumns {
			rec[i] = row[col]
		}
		records = append(records, rec)
	}
	return records
}

func cloneTable(in *models.Table) *models.Table {
	t := &models.Table{
		Source:  in.Source,
		Columns: append([]string(nil), in.Columns...),
		Rows:    make([]models.Row, len(in.Rows)),
	}
	for i, row := range in.Rows {
		r := make(models.Row, len(row)+len(models.TargetColumns))
		for k, v := range row {
			r[k] = v
		}
		t.Rows[i] = r
	}
	return t
}

// setColumn assigns fn(row) to col for every row.
func setColumn(t *models.Table, col string, fn func(models.Row) any) {
	t.AddColumn(col)
	for _, row := range t.Rows {
		row[col] = fn(row)
	}
}

func constant(v any) func(models.Row) any {
	return func(models.Row) any { return v }
}

func fromColumn(col string) func(models.Row) any {
	return func(r models.Row) any { return r[col] }
}

func setCountry(t *models.Table, country string, _ CountryRules) {
	setColumn(t, "País", constant(country))
}

func splitDate(t *models.Table, _ string, _ CountryRules) {
	source := ""
	switch {
	case t.HasColumn("Fecha"):
		source = "Fecha"
	case t.HasColumn("Fecha Canc."):
		source = "Fecha Canc."
	}

	for _, col := range []string{"Año", "Mes", "Año.Mes", "Fecha"} {
		t.AddColumn(col)
	}
	for _, row := range t.Rows {
		var v any
		if source != "" {
			v = row[source]
		}
		d, ok := parseDate(v)
		if !ok {
			row["Año"], row["Mes"], row["Año.Mes"], row["Fecha"] = nil, nil, nil, nil
			continue
		}
		row["Año"] = d.Year()
		row["Mes"] = int(d.Month())
		row["Año.Mes"] = d.Format("2006.01")
		row["Fecha"] = d.Format("02/01/2006")
	}
}

func setConstants(t *models.Table, _ string, _ CountryRules) {
	setColumn(t, "Impo/Expo", constant(ImpoExpo))
	setColumn(t, "Producto", constant(Producto))
	setColumn(t, "Código NCM", constant(CodigoNCM))
}

func classifyTransport(t *models.Table, _ string, _ CountryRules) {
	source := ""
	switch {
	case t.HasColumn("Transporte"):
		source = "Transporte"
	case t.HasColumn("Vía Transporte"):
		source = "Vía Transporte"
	}
	setColumn(t, "Vía Transporte", func(r models.Row) any {
		if source == "" {
			return TransportUnknown
		}
		return ClassifyTransport(r[source])
	})
}

func normalizeUnits(t *models.Table, _ string, cr CountryRules) {
	source := ""
	switch {
	case t.HasColumn("Unidad"):
		source = "Unidad"
	case t.HasColumn("Unidad de Medida"):
		source = "Unidad de Medida"
	}
	setColumn(t, "Unidad de Medida", func(r models.Row) any {
		if cr.Unit != "" {
			return cr.Unit
		}
		if source == "" {
			return nil
		}
		return NormalizeUnit(r[source])
	})
}

func setQuantity(t *models.Table, _ string, _ CountryRules) {
	switch {
	case t.HasColumn("Cantidad Comercial"):
		return
	case t.HasColumn("Cantidad"):
		setColumn(t, "Cantidad Comercial", fromColumn("Cantidad"))
	default:
		setColumn(t, "Cantidad Comercial", constant(nil))
	}
}

func computeTons(t *models.Table, _ string, _ CountryRules) {
	setColumn(t, "Toneladas Finales", func(r models.Row) any {
		qty, ok := toFloat(r["Cantidad Comercial"])
		if !ok {
			return nil
		}
		switch r["Unidad de Medida"] {
		case Toneladas:
			return qty
		case Kilogramos:
			return qty / 1000
		}
		return nil
	})
}

func mapCosts(t *models.Table, _ string, cr CountryRules) {
	applyMappings(t, cr.Costs)
}

func copyColumns(t *models.Table, _ string, cr CountryRules) {
	applyMappings(t, cr.Copies)
}

func applyMappings(t *models.Table, mappings []ColumnMapping) {
	for _, m := range mappings {
		if t.HasColumn(m.Source) {
			setColumn(t, m.Target, fromColumn(m.Source))
		}
	}
}

// deriveFOBUnit fills FOB (Unitario Tn) from totals when the export has no
// usable unit price at all.
func deriveFOBUnit(t *models.Table, _ string, cr CountryRules) {
	const col = "FOB (Unitario Tn)"
	if !cr.DeriveFOBUnit {
		return
	}
	if t.HasColumn(col) {
		for _, row := range t.Rows {
			if !isMissing(row[col]) {
				return
			}
		}
	}
	setColumn(t, col, func(r models.Row) any {
		fob, ok := toFloat(r["FOB (Total)"])
		if !ok {
			return nil
		}
		tons, ok := toFloat(r["Toneladas Finales"])
		if !ok || tons == 0 {
			return nil
		}
		return math.Round(fob/tons*100) / 100
	})
}

func fillMissing(t *models.Table, _ string, _ CountryRules) {
	for _, col := range models.TargetColumns {
		if !t.HasColumn(col) {
			setColumn(t, col, constant(nil))
		}
	}
}

func flagApplicable(t *models.Table, _ string, _ CountryRules) {
	setColumn(t, "Aplica?", func(r models.Row) any {
		if tons, ok := toFloat(r["Toneladas Finales"]); ok && tons >= 1 {
			return "SI"
		}
		return "NO"
	})
}
