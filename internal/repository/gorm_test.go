package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/heapgraph-analysis/internal/heapgraph"
	apperrors "github.com/heapgraph-analysis/pkg/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func testRows() []heapgraph.FlamegraphRow {
	return []heapgraph.FlamegraphRow{
		{Depth: 0, Name: "com.example.A", Count: 1, CumulativeCount: 3, Size: 10, CumulativeSize: 35, Parent: -1, Upid: 7, GraphSampleTS: 1000},
		{Depth: 1, Name: "com.example.B", Count: 1, CumulativeCount: 2, Size: 20, CumulativeSize: 25, Parent: 0, Upid: 7, GraphSampleTS: 1000},
		{Depth: 2, Name: "com.example.C", Count: 1, CumulativeCount: 1, Size: 5, CumulativeSize: 5, Parent: 1, Upid: 7, GraphSampleTS: 1000},
	}
}

func testSummary() *SnapshotSummary {
	return &SnapshotSummary{
		Upid:          7,
		GraphSampleTS: 1000,
		ObjectCount:   3,
		RootCount:     1,
		TotalRetained: 35,
		Stats:         map[string]int64{"heap_graph_missing_packet": 1},
	}
}

func TestGormSnapshotRepository_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)
	ctx := context.Background()

	id, err := repo.SaveSnapshot(ctx, testSummary(), testRows())
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Upid)
	assert.Equal(t, int64(1000), got.GraphSampleTS)
	assert.Equal(t, int64(35), got.TotalRetained)
	assert.Equal(t, map[string]int64{"heap_graph_missing_packet": 1}, got.Stats)
}

func TestGormSnapshotRepository_GetSnapshot_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)

	_, err := repo.GetSnapshot(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
}

func TestGormSnapshotRepository_GetFlamegraphRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)
	ctx := context.Background()

	rows := testRows()
	id, err := repo.SaveSnapshot(ctx, testSummary(), rows)
	require.NoError(t, err)

	got, err := repo.GetFlamegraphRows(ctx, id)
	require.NoError(t, err)
	// The snapshot identity is restored onto every row.
	assert.Equal(t, rows, got)

	_, err = repo.GetFlamegraphRows(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
}

func TestGormSnapshotRepository_ListSnapshots(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)
	ctx := context.Background()

	first, err := repo.SaveSnapshot(ctx, testSummary(), nil)
	require.NoError(t, err)
	second := testSummary()
	second.GraphSampleTS = 2000
	secondID, err := repo.SaveSnapshot(ctx, second, nil)
	require.NoError(t, err)

	got, err := repo.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	assert.Equal(t, secondID, got[0].ID)
	assert.Equal(t, first, got[1].ID)

	limited, err := repo.ListSnapshots(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormSnapshotRepository_DeleteSnapshot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSnapshotRepository(db)
	ctx := context.Background()

	id, err := repo.SaveSnapshot(ctx, testSummary(), testRows())
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSnapshot(ctx, id))

	_, err = repo.GetSnapshot(ctx, id)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))

	var count int64
	require.NoError(t, db.Model(&FlamegraphNodeRow{}).
		Where("snapshot_id = ?", id).Count(&count).Error)
	assert.Zero(t, count)

	err = repo.DeleteSnapshot(ctx, id)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
}

func TestGormSnapshotRepository_SaveSnapshot_DBError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `heap_graph_snapshot`").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	repo := NewGormSnapshotRepository(db)
	_, err = repo.SaveSnapshot(context.Background(), testSummary(), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
