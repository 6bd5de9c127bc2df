package models

import "time"

// Report describes one successful unification run.
type Report struct {
	ID          string         `json:"id"`
	CreatedAt   time.Time      `json:"createdAt"`
	SourceFiles []string       `json:"sourceFiles"`
	RowCount    int            `json:"rowCount"`
	Countries   map[string]int `json:"countries,omitempty"` // rows per country
	FileID      string         `json:"fileId,omitempty"`    // stored workbook
}

// CountrySummary aggregates the rows of one country within a report.
type CountrySummary struct {
	Country    string  `json:"country"`
	Rows       int     `json:"rows"`
	Applicable int     `json:"applicable"` // rows flagged Aplica? = SI
	Tons       float64 `json:"tons"`
	FOB        float64 `json:"fob"`
	CIF        float64 `json:"cif"`
}
