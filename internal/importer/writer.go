package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/comex-report/unificador/internal/models"
)

const (
	// OutputFilename is the name the unified workbook is delivered under.
	OutputFilename = "importaciones_unificadas.xlsx"
	// ContentType is the media type of the unified workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName = "Sheet1"
)

// WriteWorkbook writes the records as a single sheet with a header row.
func WriteWorkbook(w io.Writer, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, col := range models.TargetColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return fmt.Errorf("writing header %q: %w", col, err)
		}
	}

	for r, rec := range records {
		for c, v := range rec {
			if isMissing(v) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", r+1, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
