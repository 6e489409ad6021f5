package heapgraph

import "github.com/heapgraph-analysis/pkg/collections"

// FlamegraphRow is one emitted node of a retained-memory flamegraph.
// Parent is the index of the parent row within the returned slice, or -1
// for top-level rows; the synthetic root is never emitted.
type FlamegraphRow struct {
	Depth           int32     `json:"depth"`
	Name            string    `json:"name"`
	Count           int64     `json:"count"`
	CumulativeCount int64     `json:"cumulative_count"`
	Size            int64     `json:"size"`
	CumulativeSize  int64     `json:"cumulative_size"`
	Parent          int32     `json:"parent"`
	Upid            UniquePid `json:"upid"`
	GraphSampleTS   int64     `json:"graph_sample_ts"`
}

// pathNode is one node of the deduplicated path tree. Nodes are keyed by
// (parent node, class id): objects of the same class reached through the
// same path merge into a single node.
type pathNode struct {
	typeID   ClassID
	depth    int32
	parentID int
	size     int64
	count    int64
	children map[ClassID]int
}

// pathRootID is the index of the synthetic root node.
const pathRootID = 0

type pathFromRoot struct {
	nodes []pathNode
	// visited guarantees each object contributes to exactly one path, so
	// cycles and diamonds never double-count.
	visited map[uint64]bool
}

type pathStackElem struct {
	node     ObjectID // node in the object graph
	parentID int      // id of the parent node in the result tree
	i        int      // index of the next child to handle
	depth    int32
	children []ObjectID
}

// findPathFromRoot walks the graph from one root along shortest paths,
// folding objects into the path tree. Retention chains can be arbitrarily
// deep (think LinkedList), so the walk uses an explicit heap-allocated
// stack instead of recursion.
func (t *Tracker) findPathFromRoot(root ObjectID, path *pathFromRoot) {
	store := t.store
	if store.Object(root).TypeID == NoClass {
		// Placeholder row from a truncated capture; nothing to attribute.
		return
	}

	stack := []pathStackElem{{node: root, parentID: pathRootID}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		n := top.node
		obj := store.Object(n)
		parentID := top.parentID
		depth := top.depth

		typeID := obj.TypeID
		nodeID, ok := path.nodes[parentID].children[typeID]
		if !ok {
			nodeID = len(path.nodes)
			path.nodes = append(path.nodes, pathNode{
				typeID:   typeID,
				depth:    depth,
				parentID: parentID,
				children: make(map[ClassID]int),
			})
			path.nodes[parentID].children[typeID] = nodeID
		}

		if top.i == 0 {
			// First time on this graph node: attribute its self size to
			// the tree node and materialize its child list.
			path.nodes[nodeID].size += obj.SelfSize
			path.nodes[nodeID].count++
			top.children = store.Children(n)
		}

		if len(top.children) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		child := top.children[top.i]
		distance := obj.RootDistance
		top.i++
		if top.i == len(top.children) {
			stack = stack[:len(stack)-1]
		}

		childObj := store.Object(child)
		if distance < 0 || childObj.RootDistance < 0 {
			panic("heapgraph: unreachable object on a path from root")
		}
		if childObj.TypeID == NoClass {
			continue
		}
		// Descend only along true shortest paths into objects this build
		// has not claimed yet.
		if childObj.RootDistance == distance+1 && !path.visited[uint64(child)] {
			path.visited[uint64(child)] = true
			stack = append(stack, pathStackElem{
				node:     child,
				parentID: nodeID,
				depth:    depth + 1,
			})
		}
	}
}

// BuildFlamegraph folds the reachable graph of one snapshot into
// deduplicated, cumulative-weighted tree rows. It returns nil when no
// roots were recorded for the (ts, upid) key.
func (t *Tracker) BuildFlamegraph(ts int64, upid UniquePid) []FlamegraphRow {
	roots := t.Roots(upid, ts)
	if roots == nil {
		return nil
	}

	visited := collections.GetUint64BoolMap()
	defer collections.PutUint64BoolMap(visited)

	path := &pathFromRoot{
		nodes:   []pathNode{{typeID: NoClass, children: make(map[ClassID]int)}},
		visited: visited,
	}
	for _, root := range roots {
		t.findPathFromRoot(root, path)
	}

	// Children are always appended after their parents, so one backward
	// pass folds cumulative totals bottom-up.
	n := len(path.nodes)
	cumulativeSize := make([]int64, n)
	cumulativeCount := make([]int64, n)
	for i := n - 1; i > 0; i-- {
		node := &path.nodes[i]
		cumulativeSize[i] += node.size
		cumulativeCount[i] += node.count
		cumulativeSize[node.parentID] += cumulativeSize[i]
		cumulativeCount[node.parentID] += cumulativeCount[i]
	}

	rows := make([]FlamegraphRow, 0, n-1)
	for i := 1; i < n; i++ {
		node := &path.nodes[i]
		cls := t.store.Class(node.typeID)
		nameID := cls.DeobfuscatedName
		if nameID == NullStringID {
			nameID = cls.Name
		}
		rows = append(rows, FlamegraphRow{
			Depth:           node.depth,
			Name:            t.store.GetString(nameID),
			Count:           node.count,
			CumulativeCount: cumulativeCount[i],
			Size:            node.size,
			CumulativeSize:  cumulativeSize[i],
			Parent:          int32(node.parentID) - 1,
			Upid:            upid,
			GraphSampleTS:   ts,
		})
	}
	return rows
}
