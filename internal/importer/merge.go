package importer

import "github.com/comex-report/unificador/internal/models"

// Batch is the normalized content of one uploaded file.
type Batch struct {
	Source  string
	Country string
	Records []models.Record
}

// Result is the concatenation of every batch of a run.
type Result struct {
	Sources   []string
	Records   []models.Record
	Countries map[string]int // records per country
}

// Merge concatenates batches in upload order, keeping the row order within
// each batch.
func Merge(batches []*Batch) *Result {
	total := 0
	for _, b := range batches {
		total += len(b.Records)
	}

	result := &Result{
		Sources:   make([]string, 0, len(batches)),
		Records:   make([]models.Record, 0, total),
		Countries: make(map[string]int),
	}
	for _, b := range batches {
		result.Sources = append(result.Sources, b.Source)
		result.Records = append(result.Records, b.Records...)
		result.Countries[b.Country] += len(b.Records)
	}
	return result
}
