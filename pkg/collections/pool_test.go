package collections

import "testing"

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[uint64](4)
	if !q.IsEmpty() || q.Len() != 0 {
		t.Fatal("new queue should be empty")
	}

	for id := uint64(1); id <= 5; id++ {
		q.Enqueue(id)
	}
	if q.Len() != 5 {
		t.Fatalf("Len = %d, want 5", q.Len())
	}

	for want := uint64(1); want <= 5; want++ {
		got, ok := q.Dequeue()
		if !ok || got != want {
			t.Fatalf("Dequeue = %d, %v; want %d, true", got, ok, want)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue on empty queue should report false")
	}
}

func TestQueue_InterleavedFrontier(t *testing.T) {
	// BFS interleaves enqueue and dequeue; order must survive it.
	q := NewQueue[int](2)
	q.Enqueue(1)
	q.Enqueue(2)

	got, _ := q.Dequeue()
	if got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	q.Enqueue(3)

	var rest []int
	for !q.IsEmpty() {
		v, _ := q.Dequeue()
		rest = append(rest, v)
	}
	if len(rest) != 2 || rest[0] != 2 || rest[1] != 3 {
		t.Errorf("rest = %v, want [2 3]", rest)
	}
}

func TestQueue_CompactsConsumedPrefix(t *testing.T) {
	q := NewQueue[int](0)
	const n = 4096
	for i := 0; i < n; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < n; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("Dequeue #%d = %d, %v", i, v, ok)
		}
	}
	// Compaction must have reset the head below the trigger point.
	if q.head > 1024 {
		t.Errorf("head = %d, compaction never ran", q.head)
	}
	if !q.IsEmpty() {
		t.Error("queue should be empty after draining")
	}
}

func TestMapPool_ReturnsClearedMaps(t *testing.T) {
	pool := NewMapPool[uint64, bool](0)

	m := pool.Get()
	m[42] = true
	m[7] = true
	pool.Put(m)

	got := pool.Get()
	if len(got) != 0 {
		t.Errorf("pooled map not cleared: %v", got)
	}
}

func TestVisitedSetHelpers(t *testing.T) {
	visited := GetUint64BoolMap()
	if len(visited) != 0 {
		t.Fatalf("visited set not empty: %v", visited)
	}
	visited[100] = true
	PutUint64BoolMap(visited)

	again := GetUint64BoolMap()
	defer PutUint64BoolMap(again)
	if again[100] {
		t.Error("visited set kept entries across Put/Get")
	}
}
