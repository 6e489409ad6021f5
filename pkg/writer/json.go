// Package writer serializes analysis artifacts. The writers are generic
// over the artifact type so flame graph trees and snapshot summaries
// share one encoding path.
package writer

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONWriter writes an artifact as JSON.
type JSONWriter[T any] struct {
	// Indent is the indentation for pretty printing. Empty means compact.
	Indent string
}

// NewJSONWriter creates a compact JSON writer.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates an indented JSON writer.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write encodes the artifact onto w.
func (j *JSONWriter[T]) Write(data T, w io.Writer) error {
	enc := json.NewEncoder(w)
	if j.Indent != "" {
		enc.SetIndent("", j.Indent)
	}
	return enc.Encode(data)
}

// WriteToFile encodes the artifact into a new file at path.
func (j *JSONWriter[T]) WriteToFile(data T, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return j.Write(data, f)
}

// GzipWriter writes an artifact as gzipped JSON. Flame graphs of large
// heaps compress by an order of magnitude, so gzipped output is the
// preferred format for uploaded results.
type GzipWriter[T any] struct {
	// Level is the gzip compression level.
	Level int
}

// NewGzipWriter creates a gzip writer at the default level.
func NewGzipWriter[T any]() *GzipWriter[T] {
	return &GzipWriter[T]{Level: gzip.DefaultCompression}
}

// NewGzipWriterWithLevel creates a gzip writer at the given level.
func NewGzipWriterWithLevel[T any](level int) *GzipWriter[T] {
	return &GzipWriter[T]{Level: level}
}

// Write encodes the artifact as gzipped JSON onto w.
func (g *GzipWriter[T]) Write(data T, w io.Writer) error {
	gz, err := gzip.NewWriterLevel(w, g.Level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode data: %w", err)
	}
	return gz.Close()
}

// WriteToFile encodes the artifact as gzipped JSON into a new file.
func (g *GzipWriter[T]) WriteToFile(data T, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return g.Write(data, f)
}
