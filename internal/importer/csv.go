package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/comex-report/unificador/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader reads comma separated UTF-8 exports.
type CSVReader struct{}

func NewCSVReader() *CSVReader {
	return &CSVReader{}
}

func (p *CSVReader) Name() string {
	return "csv"
}

func (p *CSVReader) CanRead(filename string) bool {
	return hasExt(filename, ".csv")
}

func (p *CSVReader) Read(filename string, r io.Reader) (*models.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}

	return buildTable(filename, records), nil
}
