package heapgraph

import "github.com/heapgraph-analysis/pkg/collections"

type frontierNode struct {
	distance int32
	id       ObjectID
}

// markRoot tags id with its root type and runs a breadth-first traversal
// computing the shortest reference distance from the root. Distances start
// unknown (-1) and are only ever lowered, so a later root's traversal can
// still improve distances set by an earlier one; the reachable flag is set
// exactly once, on the unknown-to-known transition.
func (t *Tracker) markRoot(id ObjectID, rootType StringID) {
	store := t.store
	store.Object(id).RootType = rootType

	frontier := collections.NewQueue[frontierNode](64)
	frontier.Enqueue(frontierNode{distance: 0, id: id})
	for {
		cur, ok := frontier.Dequeue()
		if !ok {
			break
		}
		obj := store.Object(cur.id)
		if obj.RootDistance != DistanceUnknown && obj.RootDistance <= cur.distance {
			continue
		}
		if obj.RootDistance == DistanceUnknown {
			obj.Reachable = true
		}
		obj.RootDistance = cur.distance

		for _, child := range store.Children(cur.id) {
			childDistance := store.Object(child).RootDistance
			if childDistance == DistanceUnknown || childDistance > cur.distance+1 {
				frontier.Enqueue(frontierNode{distance: cur.distance + 1, id: child})
			}
		}
	}
}
