// Package compression decompresses heap dump captures. Dumps recorded on
// device are usually shipped gzipped or zstd-compressed; the format is
// detected from magic bytes so callers do not have to trust file suffixes.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Format identifies the compression applied to a capture.
type Format uint8

const (
	// FormatNone indicates an uncompressed capture.
	FormatNone Format = iota
	// FormatGzip indicates a gzip stream (magic 0x1f 0x8b).
	FormatGzip
	// FormatZstd indicates a zstd frame (magic 0x28 0xb5 0x2f 0xfd).
	FormatZstd
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	default:
		return "none"
	}
}

// Detect inspects the leading magic bytes of a capture.
func Detect(data []byte) Format {
	if len(data) >= 4 &&
		data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return FormatZstd
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return FormatGzip
	}
	return FormatNone
}

// AutoDecompress returns the uncompressed capture bytes. Uncompressed
// input is returned as is, so the caller can feed any fetched artifact
// through without checking first.
func AutoDecompress(data []byte) ([]byte, error) {
	switch Detect(data) {
	case FormatZstd:
		return decompressZstd(data)
	case FormatGzip:
		return decompressGzip(data)
	default:
		return data, nil
	}
}

func decompressGzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip stream: %w", err)
	}
	return out, nil
}

func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd frame: %w", err)
	}
	return out, nil
}

// GzipCompress compresses data with gzip at the default level. Used when
// re-uploading analysis artifacts to object storage.
func GzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write gzip data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}
