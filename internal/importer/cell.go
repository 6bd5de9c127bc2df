package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// inferCell converts a raw cell string into a typed value.
// Empty cells become nil and numeric text becomes float64.
func inferCell(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if f, ok := parseNumber(raw); ok {
		return f
	}
	return raw
}

func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toFloat returns the numeric value of a cell, if it has one.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case string:
		return parseNumber(n)
	}
	return 0, false
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

func cellText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Excel serial dates stored as plain numbers (1900 date system).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465 // 9999-12-31
)

// dateLayouts are tried in order. Slash and dash day/month forms are read
// day first, which is how the exports write them.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"02.01.2006",
}

// parseDate mirrors a coercing date conversion: anything that is not a
// recognizable date yields ok=false.
func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return d, !d.IsZero()
	case float64:
		if d < minExcelSerial || d > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(d, false)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
