package form

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirDownloader saves downloads into a directory. The payload is written to
// a temporary file first and renamed to the final name, so a reader of Dir
// never sees a partial workbook.
type DirDownloader struct {
	Dir string
}

// Download writes payload to Dir/name, replacing an existing file.
func (d DirDownloader) Download(name string, payload io.Reader) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	// release the temporary reference; a no-op once renamed
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, payload); err != nil {
		tmp.Close()
		return fmt.Errorf("writing download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing download: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}
