// Package flamegraph renders retained-memory flame graph trees from
// aggregated heap-graph rows.
package flamegraph

// Node represents a node in the flame graph tree. Size and Count are the
// node's own weight; CumulativeSize and CumulativeCount include every
// descendant.
type Node struct {
	Name            string  `json:"name"`
	Size            int64   `json:"size"`
	Count           int64   `json:"count"`
	CumulativeSize  int64   `json:"cumulative_size"`
	CumulativeCount int64   `json:"cumulative_count"`
	Children        []*Node `json:"children,omitempty"`
}

// NewNode creates a new flame graph node.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// AddChild appends a child node.
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// FlameGraph represents the complete flame graph of one heap snapshot.
type FlameGraph struct {
	Upid          uint32 `json:"upid"`
	GraphSampleTS int64  `json:"graph_sample_ts"`
	Root          *Node  `json:"root"`
	TotalSize     int64  `json:"total_size"`
	TotalCount    int64  `json:"total_count"`
	MaxDepth      int    `json:"max_depth,omitempty"`
}

// NewFlameGraph creates a flame graph with an empty root node.
func NewFlameGraph(upid uint32, ts int64) *FlameGraph {
	return &FlameGraph{
		Upid:          upid,
		GraphSampleTS: ts,
		Root:          NewNode("root"),
	}
}

// Cleanup filters nodes whose cumulative size is below minPercent of the
// total retained size.
func (fg *FlameGraph) Cleanup(minPercent float64) {
	if fg.Root == nil {
		return
	}
	threshold := int64(float64(fg.TotalSize) * minPercent / 100.0)
	fg.cleanupNode(fg.Root, threshold)
}

// cleanupNode recursively cleans up a node and its children.
func (fg *FlameGraph) cleanupNode(node *Node, threshold int64) {
	if len(node.Children) == 0 {
		node.Children = nil
		return
	}
	filtered := make([]*Node, 0, len(node.Children))
	for _, child := range node.Children {
		if child.CumulativeSize >= threshold {
			fg.cleanupNode(child, threshold)
			filtered = append(filtered, child)
		}
	}
	if len(filtered) == 0 {
		node.Children = nil
	} else {
		node.Children = filtered
	}
}

// CalculateMaxDepth calculates the maximum depth of the flame graph.
func (fg *FlameGraph) CalculateMaxDepth() int {
	if fg.Root == nil {
		return 0
	}
	fg.MaxDepth = fg.calculateDepth(fg.Root, 0)
	return fg.MaxDepth
}

func (fg *FlameGraph) calculateDepth(node *Node, currentDepth int) int {
	if len(node.Children) == 0 {
		return currentDepth
	}
	maxChildDepth := currentDepth
	for _, child := range node.Children {
		childDepth := fg.calculateDepth(child, currentDepth+1)
		if childDepth > maxChildDepth {
			maxChildDepth = childDepth
		}
	}
	return maxChildDepth
}
