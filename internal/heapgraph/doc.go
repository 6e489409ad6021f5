// Package heapgraph ingests streamed heap-snapshot records (objects, field
// references, class metadata and GC roots) and maintains them as a flat,
// append-only object graph. On top of the ingested graph it computes the
// shortest reference distance from any GC root to every object, reconstructs
// the class hierarchy from static-class descriptor objects, and folds the
// reachable graph into a deduplicated path tree suitable for flamegraph
// rendering.
//
// Records for one capture ("sequence") may arrive interleaved and out of
// dependency order; wire-scoped identifiers are remapped to dense store ids
// that are never reused. Malformed or truncated input never corrupts rows
// that were already ingested: anomalies are recorded as named soft-failure
// counters and the smallest affected unit of data is dropped.
//
// The package is single-threaded by design. One Tracker owns all mutable
// state for a processing session and every operation runs to completion
// before the next record is fed in.
package heapgraph
