// Package compression transparently decompresses trace files: axe accepts
// plain-text, gzip, or zstd input and sniffs which one it's looking at from
// the leading bytes.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Type identifies a detected compression format.
type Type uint8

const (
	// TypeGzip is gzip's 0x1f 0x8b magic.
	TypeGzip Type = 0
	// TypeZstd is zstd's 0x28 0xb5 0x2f 0xfd magic.
	TypeZstd Type = 1
)

// DetectType inspects data's leading bytes and reports which compression
// format produced it. Anything that isn't recognized is reported as
// TypeGzip, matching gzip.NewReader's own behavior of failing loudly on a
// bad header rather than silently passing non-gzip data through.
func DetectType(data []byte) Type {
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return TypeZstd
	}
	return TypeGzip
}

// AutoDecompress detects data's compression format from its magic bytes
// and decompresses it.
func AutoDecompress(data []byte) ([]byte, error) {
	switch DetectType(data) {
	case TypeZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	}
}
