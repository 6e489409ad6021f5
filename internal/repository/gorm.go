package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/heapgraph-analysis/internal/heapgraph"
	apperrors "github.com/heapgraph-analysis/pkg/errors"
)

// insertBatchSize bounds one multi-row insert; large snapshots produce
// hundreds of thousands of flamegraph rows.
const insertBatchSize = 500

// GormSnapshotRepository implements SnapshotRepository using GORM.
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository.
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	return &GormSnapshotRepository{db: db}
}

// SaveSnapshot persists a snapshot summary with its flamegraph rows in one
// transaction and returns the snapshot id.
func (r *GormSnapshotRepository) SaveSnapshot(ctx context.Context, summary *SnapshotSummary, rows []heapgraph.FlamegraphRow) (int64, error) {
	record := &HeapGraphSnapshot{
		Upid:          summary.Upid,
		GraphSampleTS: summary.GraphSampleTS,
		ObjectCount:   summary.ObjectCount,
		RootCount:     summary.RootCount,
		TotalRetained: summary.TotalRetained,
	}
	if len(summary.Stats) > 0 {
		raw, err := json.Marshal(summary.Stats)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal stats: %w", err)
		}
		record.Stats = raw
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		nodes := make([]FlamegraphNodeRow, len(rows))
		for i, row := range rows {
			nodes[i] = FlamegraphNodeRow{
				SnapshotID:      record.ID,
				RowIndex:        int32(i),
				Depth:           row.Depth,
				Name:            row.Name,
				Count:           row.Count,
				CumulativeCount: row.CumulativeCount,
				Size:            row.Size,
				CumulativeSize:  row.CumulativeSize,
				Parent:          row.Parent,
			}
		}
		if len(nodes) > 0 {
			if err := tx.CreateInBatches(nodes, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert flamegraph rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "save snapshot", err)
	}
	return record.ID, nil
}

// GetSnapshot retrieves a snapshot summary by its id.
func (r *GormSnapshotRepository) GetSnapshot(ctx context.Context, id int64) (*SnapshotSummary, error) {
	var record HeapGraphSnapshot

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound,
				fmt.Sprintf("snapshot %d", id), err)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "get snapshot", err)
	}
	return recordToSummary(&record)
}

// ListSnapshots retrieves the most recent snapshots, newest first.
func (r *GormSnapshotRepository) ListSnapshots(ctx context.Context, limit int) ([]*SnapshotSummary, error) {
	var records []HeapGraphSnapshot

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "list snapshots", err)
	}

	out := make([]*SnapshotSummary, 0, len(records))
	for i := range records {
		summary, err := recordToSummary(&records[i])
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// GetFlamegraphRows retrieves the flamegraph rows of a snapshot in row
// order.
func (r *GormSnapshotRepository) GetFlamegraphRows(ctx context.Context, snapshotID int64) ([]heapgraph.FlamegraphRow, error) {
	var snapshot HeapGraphSnapshot
	err := r.db.WithContext(ctx).Where("id = ?", snapshotID).First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound,
				fmt.Sprintf("snapshot %d", snapshotID), err)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "get snapshot", err)
	}

	var nodes []FlamegraphNodeRow
	err = r.db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Order("row_index ASC").
		Find(&nodes).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "get flamegraph rows", err)
	}

	rows := make([]heapgraph.FlamegraphRow, len(nodes))
	for i, node := range nodes {
		rows[i] = heapgraph.FlamegraphRow{
			Depth:           node.Depth,
			Name:            node.Name,
			Count:           node.Count,
			CumulativeCount: node.CumulativeCount,
			Size:            node.Size,
			CumulativeSize:  node.CumulativeSize,
			Parent:          node.Parent,
			Upid:            heapgraph.UniquePid(snapshot.Upid),
			GraphSampleTS:   snapshot.GraphSampleTS,
		}
	}
	return rows, nil
}

// DeleteSnapshot removes a snapshot and its rows.
func (r *GormSnapshotRepository) DeleteSnapshot(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("snapshot_id = ?", id).Delete(&FlamegraphNodeRow{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&HeapGraphSnapshot{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.CodeNotFound,
				fmt.Sprintf("snapshot %d", id), err)
		}
		return apperrors.Wrap(apperrors.CodeDatabaseError, "delete snapshot", err)
	}
	return nil
}

func recordToSummary(record *HeapGraphSnapshot) (*SnapshotSummary, error) {
	summary := &SnapshotSummary{
		ID:            record.ID,
		Upid:          record.Upid,
		GraphSampleTS: record.GraphSampleTS,
		ObjectCount:   record.ObjectCount,
		RootCount:     record.RootCount,
		TotalRetained: record.TotalRetained,
	}
	if record.Stats != nil {
		if err := json.Unmarshal(record.Stats, &summary.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}
	return summary, nil
}
