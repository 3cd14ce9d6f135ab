// Package archive bundles a video's exportable artifacts into a zip
// stream.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

// Entry is one file inside the export.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Write streams a zip containing the entries, in order, to w.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		modified := entry.Modified
		if modified.IsZero() {
			modified = time.Now().UTC()
		}
		header := &zip.FileHeader{
			Name:     entry.Name,
			Method:   zip.Deflate,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("archive: create %s: %w", entry.Name, err)
		}
		if _, err := fw.Write(entry.Data); err != nil {
			return fmt.Errorf("archive: write %s: %w", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: finalize: %w", err)
	}
	return nil
}
