package flamegraph

import (
	"fmt"
	"io"
	"os"

	"github.com/heapgraph-analysis/pkg/writer"
)

// JSONWriter writes flame graph data as JSON.
type JSONWriter = writer.JSONWriter[*FlameGraph]

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter() *JSONWriter {
	return writer.NewJSONWriter[*FlameGraph]()
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter() *JSONWriter {
	return writer.NewPrettyJSONWriter[*FlameGraph]()
}

// GzipWriter writes flame graph data as gzipped JSON.
type GzipWriter = writer.GzipWriter[*FlameGraph]

// NewGzipWriter creates a new gzip writer with default compression.
func NewGzipWriter() *GzipWriter {
	return writer.NewGzipWriter[*FlameGraph]()
}

// NewGzipWriterWithLevel creates a gzip writer with specified compression level.
func NewGzipWriterWithLevel(level int) *GzipWriter {
	return writer.NewGzipWriterWithLevel[*FlameGraph](level)
}

// FoldedWriter writes flame graph data in collapsed/folded format.
// This format is compatible with flamegraph.pl script.
type FoldedWriter struct{}

// NewFoldedWriter creates a new folded format writer.
func NewFoldedWriter() *FoldedWriter {
	return &FoldedWriter{}
}

// Write writes the flame graph in folded format. Every node with its own
// retained weight emits one line so that the folded totals reproduce the
// cumulative sizes.
// Format: class1;class2;class3 size
func (w *FoldedWriter) Write(fg *FlameGraph, writer io.Writer) error {
	if fg.Root == nil {
		return nil
	}
	for _, child := range fg.Root.Children {
		if err := w.writeNode(child, "", writer); err != nil {
			return err
		}
	}
	return nil
}

func (w *FoldedWriter) writeNode(node *Node, prefix string, writer io.Writer) error {
	stack := node.Name
	if prefix != "" {
		stack = prefix + ";" + node.Name
	}

	if node.Size > 0 || len(node.Children) == 0 {
		if _, err := fmt.Fprintf(writer, "%s %d\n", stack, node.Size); err != nil {
			return err
		}
	}

	for _, child := range node.Children {
		if err := w.writeNode(child, stack, writer); err != nil {
			return err
		}
	}
	return nil
}

// WriteToFile writes the flame graph in folded format to a file.
func (w *FoldedWriter) WriteToFile(fg *FlameGraph, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return w.Write(fg, file)
}
