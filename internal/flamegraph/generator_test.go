package flamegraph

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapgraph-analysis/internal/heapgraph"
)

// chainRows mirrors the aggregation output for A -> B -> C with sizes
// 10/20/5.
func chainRows() []heapgraph.FlamegraphRow {
	return []heapgraph.FlamegraphRow{
		{Depth: 0, Name: "com.example.A", Count: 1, CumulativeCount: 3, Size: 10, CumulativeSize: 35, Parent: -1, Upid: 7, GraphSampleTS: 1000},
		{Depth: 1, Name: "com.example.B", Count: 1, CumulativeCount: 2, Size: 20, CumulativeSize: 25, Parent: 0, Upid: 7, GraphSampleTS: 1000},
		{Depth: 2, Name: "com.example.C", Count: 1, CumulativeCount: 1, Size: 5, CumulativeSize: 5, Parent: 1, Upid: 7, GraphSampleTS: 1000},
	}
}

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator(nil)

	fg, err := g.Generate(context.Background(), 7, 1000, chainRows())
	require.NoError(t, err)

	assert.Equal(t, uint32(7), fg.Upid)
	assert.Equal(t, int64(1000), fg.GraphSampleTS)
	assert.Equal(t, int64(35), fg.TotalSize)
	assert.Equal(t, int64(3), fg.TotalCount)
	assert.Equal(t, 3, fg.MaxDepth)

	require.Len(t, fg.Root.Children, 1)
	a := fg.Root.Children[0]
	assert.Equal(t, "com.example.A", a.Name)
	require.Len(t, a.Children, 1)
	b := a.Children[0]
	assert.Equal(t, "com.example.B", b.Name)
	require.Len(t, b.Children, 1)
	assert.Equal(t, "com.example.C", b.Children[0].Name)
}

func TestGenerator_GenerateEmpty(t *testing.T) {
	g := NewGenerator(nil)

	fg, err := g.Generate(context.Background(), 7, 1000, nil)
	require.NoError(t, err)
	assert.Empty(t, fg.Root.Children)
	assert.Equal(t, int64(0), fg.TotalSize)
}

func TestGenerator_MinPercentFilter(t *testing.T) {
	rows := []heapgraph.FlamegraphRow{
		{Name: "com.example.Big", Size: 99, CumulativeSize: 99, Count: 1, CumulativeCount: 1, Parent: -1},
		{Name: "com.example.Tiny", Size: 1, CumulativeSize: 1, Count: 1, CumulativeCount: 1, Parent: -1},
	}
	g := NewGenerator(&GeneratorOptions{MinPercent: 5})

	fg, err := g.Generate(context.Background(), 7, 1000, rows)
	require.NoError(t, err)
	require.Len(t, fg.Root.Children, 1)
	assert.Equal(t, "com.example.Big", fg.Root.Children[0].Name)
}

func TestGenerator_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGenerator(nil)
	_, err := g.Generate(ctx, 7, 1000, chainRows())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJSONWriter_RoundTrip(t *testing.T) {
	g := NewGenerator(nil)
	fg, err := g.Generate(context.Background(), 7, 1000, chainRows())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter().Write(fg, &buf))

	var decoded FlameGraph
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, int64(35), decoded.TotalSize)
	require.NotNil(t, decoded.Root)
	require.Len(t, decoded.Root.Children, 1)
	assert.Equal(t, "com.example.A", decoded.Root.Children[0].Name)
}

func TestGzipWriter_RoundTrip(t *testing.T) {
	g := NewGenerator(nil)
	fg, err := g.Generate(context.Background(), 7, 1000, chainRows())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewGzipWriter().Write(fg, &buf))

	gz, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	var decoded FlameGraph
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, uint32(7), decoded.Upid)
}

func TestFoldedWriter(t *testing.T) {
	g := NewGenerator(nil)
	fg, err := g.Generate(context.Background(), 7, 1000, chainRows())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewFoldedWriter().Write(fg, &buf))

	want := "com.example.A 10\n" +
		"com.example.A;com.example.B 20\n" +
		"com.example.A;com.example.B;com.example.C 5\n"
	assert.Equal(t, want, buf.String())
}
