package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestWriteProducesReadableZip(t *testing.T) {
	var buf bytes.Buffer
	entries := []Entry{
		{Name: "transcript.json", Data: []byte(`{"video_id":"vid1"}`)},
		{Name: "passages.json", Data: []byte(`[]`)},
	}
	if err := Write(&buf, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 files, got %d", len(zr.File))
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open first entry: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read first entry: %v", err)
	}
	if string(data) != `{"video_id":"vid1"}` {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestWriteEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		t.Fatalf("empty archive unreadable: %v", err)
	}
}
