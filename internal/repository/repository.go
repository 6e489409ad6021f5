package repository

import (
	"context"

	"github.com/heapgraph-analysis/internal/heapgraph"
)

// SnapshotSummary describes one persisted snapshot without its rows.
type SnapshotSummary struct {
	ID            int64            `json:"id"`
	Upid          uint32           `json:"upid"`
	GraphSampleTS int64            `json:"graph_sample_ts"`
	ObjectCount   int64            `json:"object_count"`
	RootCount     int64            `json:"root_count"`
	TotalRetained int64            `json:"total_retained"`
	Stats         map[string]int64 `json:"stats,omitempty"`
}

// SnapshotRepository defines the interface for persisting analyzed heap
// snapshots and their flamegraph rows.
type SnapshotRepository interface {
	// SaveSnapshot persists a snapshot summary with its flamegraph rows in
	// one transaction and returns the snapshot id.
	SaveSnapshot(ctx context.Context, summary *SnapshotSummary, rows []heapgraph.FlamegraphRow) (int64, error)

	// GetSnapshot retrieves a snapshot summary by its id.
	GetSnapshot(ctx context.Context, id int64) (*SnapshotSummary, error)

	// ListSnapshots retrieves the most recent snapshots, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]*SnapshotSummary, error)

	// GetFlamegraphRows retrieves the flamegraph rows of a snapshot in row
	// order.
	GetFlamegraphRows(ctx context.Context, snapshotID int64) ([]heapgraph.FlamegraphRow, error)

	// DeleteSnapshot removes a snapshot and its rows.
	DeleteSnapshot(ctx context.Context, id int64) error
}
