package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/comex-report/unificador/internal/models"
)

// XLSXReader reads the first sheet of an Excel workbook.
type XLSXReader struct{}

func NewXLSXReader() *XLSXReader {
	return &XLSXReader{}
}

func (p *XLSXReader) Name() string {
	return "xlsx"
}

func (p *XLSXReader) CanRead(filename string) bool {
	return hasExt(filename, ".xlsx")
}

func (p *XLSXReader) Read(filename string, r io.Reader) (*models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	// Raw values keep dates as serial numbers instead of locale formatted text.
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	return buildTable(filename, records), nil
}
