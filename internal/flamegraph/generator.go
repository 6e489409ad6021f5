package flamegraph

import (
	"context"
	"io"

	"github.com/heapgraph-analysis/internal/heapgraph"
)

// GeneratorOptions holds configuration options for the flame graph generator.
type GeneratorOptions struct {
	// MinPercent is the minimum percentage of the total retained size for
	// a node to be included.
	MinPercent float64
}

// DefaultGeneratorOptions returns default generator options.
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		MinPercent: 0, // keep everything
	}
}

// Generator builds nested flame graph trees from flat aggregated rows.
type Generator struct {
	opts *GeneratorOptions
}

// NewGenerator creates a new flame graph generator.
func NewGenerator(opts *GeneratorOptions) *Generator {
	if opts == nil {
		opts = DefaultGeneratorOptions()
	}
	return &Generator{opts: opts}
}

// Generate builds the nested tree for one snapshot from its aggregated
// rows. Rows reference their parent by row index with -1 meaning
// top-level, and parents always precede their children.
func (g *Generator) Generate(ctx context.Context, upid heapgraph.UniquePid, ts int64, rows []heapgraph.FlamegraphRow) (*FlameGraph, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fg := NewFlameGraph(uint32(upid), ts)

	nodes := make([]*Node, len(rows))
	for i, row := range rows {
		node := NewNode(row.Name)
		node.Size = row.Size
		node.Count = row.Count
		node.CumulativeSize = row.CumulativeSize
		node.CumulativeCount = row.CumulativeCount
		nodes[i] = node

		if row.Parent < 0 {
			fg.Root.AddChild(node)
			fg.TotalSize += row.CumulativeSize
			fg.TotalCount += row.CumulativeCount
		} else {
			nodes[row.Parent].AddChild(node)
		}
	}

	fg.Root.CumulativeSize = fg.TotalSize
	fg.Root.CumulativeCount = fg.TotalCount

	if g.opts.MinPercent > 0 {
		fg.Cleanup(g.opts.MinPercent)
	}
	fg.CalculateMaxDepth()
	return fg, nil
}

// Writer defines the interface for writing flame graph output.
type Writer interface {
	Write(fg *FlameGraph, w io.Writer) error
}
