package traceparser

import "github.com/go-axe/axe/pkg/compression"

// DecompressIfNeeded gunzips or un-zstds raw trace bytes whose leading
// magic bytes identify a compressed stream, and passes plain-text trace
// data through unchanged. Lets axe accept trace corpora compressed the
// same way pkg/writer's gzipped batch reports are, without requiring
// callers to know the encoding up front.
func DecompressIfNeeded(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return data, nil
	}
	isGzip := data[0] == 0x1f && data[1] == 0x8b
	isZstd := data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd
	if !isGzip && !isZstd {
		return data, nil
	}
	return compression.AutoDecompress(data)
}
