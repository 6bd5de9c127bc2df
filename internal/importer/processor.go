package importer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is one uploaded file.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// Processor reads, normalizes and merges exports.
type Processor struct {
	registry *Registry
	rules    *Rules
}

// NewProcessor creates a processor. Nil arguments select the defaults.
func NewProcessor(registry *Registry, rules *Rules) *Processor {
	if registry == nil {
		registry = GetGlobalRegistry()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Processor{registry: registry, rules: rules}
}

// Rules returns the rules in use.
func (p *Processor) Rules() *Rules {
	return p.rules
}

// ProcessFile normalizes one export. Problems with the upload itself are
// returned as *InputError.
func (p *Processor) ProcessFile(name string, r io.Reader) (*Batch, error) {
	country, err := DetectCountry(name)
	if err != nil {
		return nil, err
	}

	reader, err := p.registry.FindReader(name)
	if err != nil {
		return nil, err
	}

	table, err := reader.Read(name, r)
	if err != nil {
		return nil, err
	}

	return &Batch{
		Source:  name,
		Country: country,
		Records: Normalize(table, country, p.rules),
	}, nil
}

// Unify processes every source and merges the results. The first failing
// file aborts the run: input errors are returned as is, anything else is
// wrapped in a *FileError.
func (p *Processor) Unify(sources []Source) (*Result, error) {
	if len(sources) == 0 {
		return nil, ErrNoFiles
	}

	batches := make([]*Batch, 0, len(sources))
	for _, src := range sources {
		b, err := p.processSource(src)
		if err != nil {
			var inErr *InputError
			if errors.As(err, &inErr) {
				return nil, inErr
			}
			return nil, &FileError{File: src.Name(), Err: err}
		}
		batches = append(batches, b)
	}
	return Merge(batches), nil
}

func (p *Processor) processSource(src Source) (*Batch, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return p.ProcessFile(src.Name(), rc)
}

// FileSource is a Source backed by a local path.
type FileSource string

func (f FileSource) Name() string {
	return filepath.Base(string(f))
}

func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// ListExports returns the xlsx exports of a folder, sorted by name.
func ListExports(dir string) ([]FileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []FileSource
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, ".xlsx") {
			continue
		}
		files = append(files, FileSource(filepath.Join(dir, name)))
	}
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })
	return files, nil
}
