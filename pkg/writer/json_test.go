package writer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type testSummary struct {
	Model   string `json:"model"`
	Total   int    `json:"total"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
}

func TestGzipWriter_Write(t *testing.T) {
	data := &testSummary{Model: "SC", Total: 10, Passed: 9, Failed: 1}

	w := NewGzipWriter[*testSummary]()
	var buf bytes.Buffer
	if err := w.Write(data, &buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	gzReader, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}

	var decoded testSummary
	if err := json.Unmarshal(decompressed, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded != *data {
		t.Errorf("decoded data mismatch: got %+v, want %+v", decoded, *data)
	}
}

func TestGzipWriter_WriteToFile(t *testing.T) {
	data := &testSummary{Model: "POW", Total: 3, Passed: 3}
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "report.json.gz")

	w := NewGzipWriter[*testSummary]()
	if err := w.WriteToFile(data, filePath); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		t.Fatalf("failed to open file: %v", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}

	var decoded testSummary
	if err := json.Unmarshal(decompressed, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded != *data {
		t.Errorf("decoded data mismatch: got %+v, want %+v", decoded, *data)
	}
}
