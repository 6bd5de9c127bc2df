// Package importer turns per-country customs "detalle" exports into the
// unified import layout.
package importer

import (
	"fmt"
	"strings"
)

// Countries maps the two-letter code found in file names to the country name
// written in the País column.
var Countries = map[string]string{
	"AR": "Argentina",
	"BO": "Bolivia",
	"BR": "Brasil",
	"CL": "Chile",
	"CO": "Colombia",
	"EC": "Ecuador",
	"PE": "Perú",
	"PY": "Paraguay",
	"UY": "Uruguay",
}

// FilePrefix is the prefix every export file name must carry.
const FilePrefix = "detalle_"

// DetectCountry extracts the country from a file name such as
// "detalle_AR_2024.xlsx" or "detalle_cl-enero.csv".
func DetectCountry(filename string) (string, error) {
	if !strings.HasPrefix(filename, FilePrefix) {
		return "", inputErrorf("Archivo %s no comienza con '%s'", filename, FilePrefix)
	}

	parts := strings.Split(filename, "_")
	code := parts[1]
	if len(code) > 2 {
		code = code[:2]
	}
	code = strings.ToUpper(code)

	country, ok := Countries[code]
	if !ok {
		return "", inputErrorf("Código país no reconocido en %s", filename)
	}
	return country, nil
}

// InputError is a problem with what the user uploaded. The message is meant
// to be shown as is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

func inputErrorf(format string, args ...interface{}) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

var (
	// ErrNoFiles is returned when a unification is requested without files.
	ErrNoFiles = &InputError{Msg: "No se subieron archivos"}
	// ErrNoData is returned when no file produced a table.
	ErrNoData = &InputError{Msg: "No se generaron datos de los archivos"}
)

// FileError wraps an unexpected failure while processing one file.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("Error procesando %s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
