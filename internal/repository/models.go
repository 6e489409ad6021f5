// Package repository provides database persistence for heap-graph
// analysis results.
package repository

import (
	"database/sql/driver"
	"errors"
	"time"
)

// HeapGraphSnapshot represents the heap_graph_snapshot table. One row per
// analyzed (upid, graph_sample_ts) snapshot.
type HeapGraphSnapshot struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Upid          uint32    `gorm:"column:upid;index:idx_snapshot_key"`
	GraphSampleTS int64     `gorm:"column:graph_sample_ts;index:idx_snapshot_key"`
	ObjectCount   int64     `gorm:"column:object_count"`
	RootCount     int64     `gorm:"column:root_count"`
	TotalRetained int64     `gorm:"column:total_retained"`
	Stats         JSONField `gorm:"column:stats;type:json"`
	CreateTime    time.Time `gorm:"column:create_time;autoCreateTime"`
}

// TableName returns the table name for HeapGraphSnapshot.
func (HeapGraphSnapshot) TableName() string {
	return "heap_graph_snapshot"
}

// FlamegraphNodeRow represents the heap_graph_flamegraph_node table. Rows
// of one snapshot form a tree: Parent is the RowIndex of the parent row,
// -1 for top-level rows.
type FlamegraphNodeRow struct {
	ID              int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SnapshotID      int64  `gorm:"column:snapshot_id;index"`
	RowIndex        int32  `gorm:"column:row_index"`
	Depth           int32  `gorm:"column:depth"`
	Name            string `gorm:"column:name;type:varchar(512)"`
	Count           int64  `gorm:"column:count"`
	CumulativeCount int64  `gorm:"column:cumulative_count"`
	Size            int64  `gorm:"column:size"`
	CumulativeSize  int64  `gorm:"column:cumulative_size"`
	Parent          int32  `gorm:"column:parent"`
}

// TableName returns the table name for FlamegraphNodeRow.
func (FlamegraphNodeRow) TableName() string {
	return "heap_graph_flamegraph_node"
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
