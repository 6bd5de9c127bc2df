// Package form models the upload form: the selected files, the loading flag
// and the error message, and the handlers that move between states.
package form

import (
	"io"
	"os"
	"path/filepath"
)

// Texts shown by the form.
const (
	Accept       = ".xlsx,.csv"
	LabelIdle    = "Unificar y Descargar"
	LabelLoading = "Procesando..."
	MsgNoFiles   = "Por favor, selecciona al menos un archivo."
	MsgFallback  = "Error al procesar archivos."
	DownloadName = "importaciones_unificadas.xlsx"
)

// File is a selected file handle.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type pathFile string

func (p pathFile) Name() string { return filepath.Base(string(p)) }
func (p pathFile) Open() (io.ReadCloser, error) { return os.Open(string(p)) }

// FromPath returns a handle for a local file.
func FromPath(path string) File {
	return pathFile(path)
}

// FromPaths returns handles for local files, keeping their order.
func FromPaths(paths []string) []File {
	files := make([]File, len(paths))
	for i, p := range paths {
		files[i] = FromPath(p)
	}
	return files
}

// State is an immutable snapshot of the form. Handlers never modify a State
// in place; they publish a new one.
type State struct {
	files   []File
	Loading bool
	Err     string
}

// Files returns a copy of the selection.
func (s State) Files() []File {
	return append([]File(nil), s.files...)
}

// FileCount returns the number of selected files.
func (s State) FileCount() int {
	return len(s.files)
}

func (s State) withFiles(files []File) State {
	s.files = append([]File(nil), files...)
	return s
}

func (s State) withLoading(loading bool) State {
	s.Loading = loading
	return s
}

func (s State) withErr(msg string) State {
	s.Err = msg
	return s
}

// View is what the page renders for a State.
type View struct {
	Accept         string   `json:"accept"`
	FileNames      []string `json:"fileNames"`
	SubmitLabel    string   `json:"submitLabel"`
	SubmitDisabled bool     `json:"submitDisabled"`
	Error          string   `json:"error,omitempty"`
}

// View renders s.
func (s State) View() View {
	v := View{
		Accept:         Accept,
		FileNames:      make([]string, len(s.files)),
		SubmitLabel:    LabelIdle,
		SubmitDisabled: s.Loading,
		Error:          s.Err,
	}
	for i, f := range s.files {
		v.FileNames[i] = f.Name()
	}
	if s.Loading {
		v.SubmitLabel = LabelLoading
	}
	return v
}
