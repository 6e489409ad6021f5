package compression

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
)

var sampleRecords = []byte(`{"type":"object","seq":1,"upid":3,"ts":100,"object":{"id":1,"type_id":1,"self_size":64}}
{"type":"root","seq":1,"upid":3,"ts":100,"root":{"root_type":"ROOT_GLOBAL","object_ids":[1]}}
`)

func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestDetect(t *testing.T) {
	gz, err := GzipCompress(sampleRecords)
	if err != nil {
		t.Fatalf("GzipCompress: %v", err)
	}

	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"gzip", gz, FormatGzip},
		{"zstd", zstdCompress(t, sampleRecords), FormatZstd},
		{"plain records", sampleRecords, FormatNone},
		{"empty", nil, FormatNone},
		{"short", []byte{0x1f}, FormatNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAutoDecompress_Gzip(t *testing.T) {
	gz, err := GzipCompress(sampleRecords)
	if err != nil {
		t.Fatalf("GzipCompress: %v", err)
	}

	out, err := AutoDecompress(gz)
	if err != nil {
		t.Fatalf("AutoDecompress: %v", err)
	}
	if !bytes.Equal(out, sampleRecords) {
		t.Errorf("round trip mismatch: got %q", out)
	}
}

func TestAutoDecompress_Zstd(t *testing.T) {
	out, err := AutoDecompress(zstdCompress(t, sampleRecords))
	if err != nil {
		t.Fatalf("AutoDecompress: %v", err)
	}
	if !bytes.Equal(out, sampleRecords) {
		t.Errorf("round trip mismatch: got %q", out)
	}
}

func TestAutoDecompress_PassThrough(t *testing.T) {
	out, err := AutoDecompress(sampleRecords)
	if err != nil {
		t.Fatalf("AutoDecompress: %v", err)
	}
	if !bytes.Equal(out, sampleRecords) {
		t.Errorf("plain input should pass through unchanged")
	}
}

func TestAutoDecompress_CorruptGzip(t *testing.T) {
	corrupt := []byte{0x1f, 0x8b, 0x00, 0x00, 0x00}
	if _, err := AutoDecompress(corrupt); err == nil {
		t.Error("expected error for truncated gzip stream")
	}
}

func TestFormatString(t *testing.T) {
	if FormatGzip.String() != "gzip" || FormatZstd.String() != "zstd" || FormatNone.String() != "none" {
		t.Error("unexpected format names")
	}
}
