package compression

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close failed: %v", err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("failed to create zstd encoder: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Type
	}{
		{"gzip magic", []byte{0x1f, 0x8b, 0x08, 0x00}, TypeGzip},
		{"zstd magic", []byte{0x28, 0xb5, 0x2f, 0xfd}, TypeZstd},
		{"unknown (defaults to gzip)", []byte{0x00, 0x00, 0x00, 0x00}, TypeGzip},
		{"too short", []byte{0x1f}, TypeGzip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectType(tt.data); got != tt.expected {
				t.Errorf("DetectType() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAutoDecompress_Gzip(t *testing.T) {
	original := []byte("0 : x := 1\n0 : y := 1 @1:2\ncheck\n")
	decompressed, err := AutoDecompress(gzipBytes(t, original))
	if err != nil {
		t.Fatalf("AutoDecompress failed: %v", err)
	}
	if !bytes.Equal(original, decompressed) {
		t.Errorf("AutoDecompress gzip: got %q, want %q", decompressed, original)
	}
}

func TestAutoDecompress_Zstd(t *testing.T) {
	original := []byte("0 : x := 1\n0 : y := 1 @1:2\ncheck\n")
	decompressed, err := AutoDecompress(zstdBytes(t, original))
	if err != nil {
		t.Fatalf("AutoDecompress failed: %v", err)
	}
	if !bytes.Equal(original, decompressed) {
		t.Errorf("AutoDecompress zstd: got %q, want %q", decompressed, original)
	}
}

func TestAutoDecompress_BadGzipHeader(t *testing.T) {
	if _, err := AutoDecompress([]byte{0x1f, 0x8b, 0xff, 0xff}); err == nil {
		t.Error("expected an error decompressing a corrupt gzip header")
	}
}
