// Package collections holds the scratch structures the graph walks
// lean on: a FIFO queue for BFS frontiers and pooled visited sets so
// that building flamegraphs for many snapshots does not reallocate a
// large map per root.
package collections

import "sync"

// Queue is a FIFO queue over a slice. Dequeue advances a head index
// instead of reslicing, and the backing array is compacted once more
// than half of it has been consumed.
type Queue[T any] struct {
	data []T
	head int
}

// NewQueue returns a queue with the given initial capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{data: make([]T, 0, capacity)}
}

// Enqueue appends v to the back of the queue.
func (q *Queue[T]) Enqueue(v T) {
	q.data = append(q.data, v)
}

// Dequeue removes and returns the front element. The second result is
// false when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	if q.head >= len(q.data) {
		var zero T
		return zero, false
	}
	v := q.data[q.head]
	q.head++
	if q.head > 1024 && q.head > len(q.data)/2 {
		q.compact()
	}
	return v, true
}

// IsEmpty reports whether the queue holds no elements.
func (q *Queue[T]) IsEmpty() bool {
	return q.head >= len(q.data)
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.data) - q.head
}

func (q *Queue[T]) compact() {
	n := copy(q.data, q.data[q.head:])
	q.data = q.data[:n]
	q.head = 0
}

// MapPool recycles maps through a sync.Pool. Maps come back cleared.
type MapPool[K comparable, V any] struct {
	pool sync.Pool
}

// NewMapPool returns a pool whose maps start with the given capacity.
func NewMapPool[K comparable, V any](initialCap int) *MapPool[K, V] {
	if initialCap <= 0 {
		initialCap = 1024
	}
	return &MapPool[K, V]{
		pool: sync.Pool{
			New: func() interface{} {
				return make(map[K]V, initialCap)
			},
		},
	}
}

// Get takes a map from the pool.
func (p *MapPool[K, V]) Get() map[K]V {
	return p.pool.Get().(map[K]V)
}

// Put clears m and returns it to the pool.
func (p *MapPool[K, V]) Put(m map[K]V) {
	clear(m)
	p.pool.Put(m)
}

// visitedSetPool backs the per-build visited sets of the flamegraph
// path walk. Object ids are uint64 handles.
var visitedSetPool = NewMapPool[uint64, bool](1024)

// GetUint64BoolMap takes a cleared visited set from the shared pool.
func GetUint64BoolMap() map[uint64]bool {
	return visitedSetPool.Get()
}

// PutUint64BoolMap returns a visited set to the shared pool.
func PutUint64BoolMap(m map[uint64]bool) {
	visitedSetPool.Put(m)
}
