package sqlite

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/model/transaction"
	"github.com/ductware/atomtx/internal/domain/repository"
)

// setupHistoryRepo creates a migrated SQLite database and the repository
// under test
func setupHistoryRepo(t *testing.T) repository.HistoryRepository {
	t.Helper()

	db := openTestDB(t)
	require.NoError(t, NewMigrator(db).Migrate())
	return NewHistoryRepository(db)
}

func committedResult(t *testing.T, userID string, finishedAt time.Time) *transaction.Result {
	t.Helper()

	return &transaction.Result{
		TransactionID:      model.NewTransactionID(),
		Status:             model.StatusCommitted,
		ExecutedOperations: []string{"op-1", "op-2"},
		UserID:             userID,
		SessionID:          "session-1",
		Duration:           125 * time.Millisecond,
		FinishedAt:         finishedAt,
	}
}

func TestHistoryRepositoryImpl_AppendAndList(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()

	point, err := rollback.NewPoint(
		model.NewTransactionID(),
		model.RollbackPointTypeCheckpoint,
		"Before step: widen table",
		map[string]model.SnapshotID{"state": model.NewSnapshotID()},
	)
	require.NoError(t, err)

	res := committedResult(t, "alice", time.Now())
	res.Value = map[string]interface{}{"rows": float64(3)}
	res.RollbackPoints = []*rollback.Point{point}
	res.RollbackFailures = []transaction.RollbackFailure{
		{OperationID: "op-2", Message: "target vanished"},
	}
	res.Metadata = map[string]interface{}{"plan": "widen"}

	require.NoError(t, repo.Append(ctx, res))

	results, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.True(t, got.TransactionID.Equals(res.TransactionID))
	assert.Equal(t, model.StatusCommitted, got.Status)
	assert.Equal(t, res.Value, got.Value)
	assert.Equal(t, []string{"op-1", "op-2"}, got.ExecutedOperations)
	assert.Equal(t, res.RollbackFailures, got.RollbackFailures)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, 125*time.Millisecond, got.Duration)
	assert.Equal(t, res.Metadata, got.Metadata)
	assert.WithinDuration(t, res.FinishedAt, got.FinishedAt, time.Millisecond)

	require.Len(t, got.RollbackPoints, 1)
	gotPoint := got.RollbackPoints[0]
	assert.True(t, gotPoint.ID().Equals(point.ID()))
	assert.True(t, gotPoint.TransactionID().Equals(point.TransactionID()))
	assert.Equal(t, model.RollbackPointTypeCheckpoint, gotPoint.Type())
	assert.Equal(t, "Before step: widen table", gotPoint.Description())
	assert.Equal(t, point.Snapshots(), gotPoint.Snapshots())
}

func TestHistoryRepositoryImpl_MinimalResult(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()

	res := &transaction.Result{
		TransactionID:      model.NewTransactionID(),
		Status:             model.StatusFailed,
		Error:              "operation validation failed",
		ExecutedOperations: []string{},
		FinishedAt:         time.Now(),
	}
	require.NoError(t, repo.Append(ctx, res))

	results, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Nil(t, got.Value)
	assert.Equal(t, "operation validation failed", got.Error)
	assert.Empty(t, got.RollbackPoints)
	assert.Empty(t, got.RollbackFailures)
	assert.Equal(t, []string{}, got.ExecutedOperations)
	assert.Nil(t, got.Metadata)
}

func TestHistoryRepositoryImpl_ListByUser(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Append(ctx, committedResult(t, "alice", now.Add(-2*time.Hour))))
	require.NoError(t, repo.Append(ctx, committedResult(t, "bob", now.Add(-time.Hour))))
	require.NoError(t, repo.Append(ctx, committedResult(t, "alice", now)))

	results, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, "alice", res.UserID)
	}
	// Oldest first
	assert.True(t, results[0].FinishedAt.Before(results[1].FinishedAt))

	none, err := repo.ListByUser(ctx, "mallory")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryRepositoryImpl_ListOrdering(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()

	now := time.Now()
	newest := committedResult(t, "carol", now)
	oldest := committedResult(t, "carol", now.Add(-time.Hour))
	middle := committedResult(t, "carol", now.Add(-30*time.Minute))

	// Insertion order differs from finish order
	require.NoError(t, repo.Append(ctx, newest))
	require.NoError(t, repo.Append(ctx, oldest))
	require.NoError(t, repo.Append(ctx, middle))

	results, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].TransactionID.Equals(oldest.TransactionID))
	assert.True(t, results[1].TransactionID.Equals(middle.TransactionID))
	assert.True(t, results[2].TransactionID.Equals(newest.TransactionID))
}

func TestHistoryRepositoryImpl_DeleteOlderThan(t *testing.T) {
	repo := setupHistoryRepo(t)
	ctx := context.Background()

	now := time.Now()
	old := committedResult(t, "dave", now.Add(-48*time.Hour))
	recent := committedResult(t, "dave", now)
	require.NoError(t, repo.Append(ctx, old))
	require.NoError(t, repo.Append(ctx, recent))

	removed, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	results, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].TransactionID.Equals(recent.TransactionID))

	// Nothing left below the cutoff
	removed, err = repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}
