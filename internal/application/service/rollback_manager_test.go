package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
	"github.com/ductware/atomtx/internal/infrastructure/persistence/memory"
)

// trackedOp records its rollback invocations
type trackedOp struct {
	mu   sync.Mutex
	log  *[]string
	id   string
	fail error
}

func newTrackedOp(id string, log *[]string) *trackedOp {
	return &trackedOp{id: id, log: log}
}

func (o *trackedOp) asOperation() operation.AtomicOperation {
	return &operation.FuncOperation{
		Desc: operation.Descriptor{ID: o.id, Name: o.id, Timeout: time.Second, Priority: 1},
		ExecuteFn: func(context.Context, *model.TransactionContext) (interface{}, error) {
			return nil, nil
		},
		RollbackFn: func(context.Context, *model.TransactionContext) error {
			o.mu.Lock()
			*o.log = append(*o.log, o.id)
			o.mu.Unlock()
			return o.fail
		},
	}
}

func TestRollbackManager_SequentialStrategy(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})
	ctx := context.Background()

	var undone []string
	log := &undone
	ops := []operation.AtomicOperation{
		newTrackedOp("op-1", log).asOperation(),
		newTrackedOp("op-2", log).asOperation(),
		newTrackedOp("op-3", log).asOperation(),
	}

	strategy, err := manager.CreateRollbackStrategy(ctx, ops, model.StrategySequential)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, strategy.Dependencies())

	ok, err := manager.ExecuteRollbackStrategy(ctx, strategy.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	// Sequential plans run steps in plan order
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, undone)
}

func TestRollbackManager_ParallelStrategy(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})
	ctx := context.Background()

	var undone []string
	log := &undone
	ops := []operation.AtomicOperation{
		newTrackedOp("op-1", log).asOperation(),
		newTrackedOp("op-2", log).asOperation(),
		newTrackedOp("op-3", log).asOperation(),
	}

	strategy, err := manager.CreateRollbackStrategy(ctx, ops, model.StrategyParallel)
	require.NoError(t, err)

	ok, err := manager.ExecuteRollbackStrategy(ctx, strategy.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	// Order is unspecified, but every step must have run
	assert.ElementsMatch(t, []string{"op-1", "op-2", "op-3"}, undone)
}

func TestRollbackManager_StepFailureReportsFalse(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})
	ctx := context.Background()

	var undone []string
	log := &undone
	bad := newTrackedOp("op-2", log)
	bad.fail = errors.New("target vanished")

	ops := []operation.AtomicOperation{
		newTrackedOp("op-1", log).asOperation(),
		bad.asOperation(),
		newTrackedOp("op-3", log).asOperation(),
	}

	strategy, err := manager.CreateRollbackStrategy(ctx, ops, model.StrategySequential)
	require.NoError(t, err)

	ok, err := manager.ExecuteRollbackStrategy(ctx, strategy.ID())
	require.NoError(t, err, "a failing step is not an execution error")
	assert.False(t, ok)
	// The failing step never halts the remaining ones
	assert.Equal(t, []string{"op-1", "op-2", "op-3"}, undone)
}

func TestRollbackManager_UnknownStrategy(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})

	_, err := manager.ExecuteRollbackStrategy(context.Background(), model.NewStrategyID())
	assert.ErrorIs(t, err, model.ErrStrategyNotFound)
}

func TestRollbackManager_CreateStrategyInvalid(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})
	ctx := context.Background()

	_, err := manager.CreateRollbackStrategy(ctx, nil, model.StrategySequential)
	assert.Error(t, err)

	var undone []string
	ops := []operation.AtomicOperation{newTrackedOp("op-1", &undone).asOperation()}
	_, err = manager.CreateRollbackStrategy(ctx, ops, "eventual")
	assert.Error(t, err)
}

func TestRollbackManager_ValidateRollbackFeasibility(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	manager := NewRollbackManager(repo, nil, RollbackManagerConfig{})
	ctx := context.Background()

	snap, err := snapshot.New(model.SnapshotTypeIncremental, []byte("state"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, snap))

	point, err := rollback.NewPoint(model.NewTransactionID(), model.RollbackPointTypeCheckpoint, "midpoint",
		map[string]model.SnapshotID{"state": snap.ID()})
	require.NoError(t, err)
	manager.RegisterRollbackPoint(point)

	result := manager.ValidateRollbackFeasibility(ctx, point.ID())
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Warnings)
}

func TestRollbackManager_FeasibilityMissingPoint(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})

	result := manager.ValidateRollbackFeasibility(context.Background(), model.NewRollbackPointID())
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rollback point not found")
}

func TestRollbackManager_FeasibilityMissingSnapshot(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})
	ctx := context.Background()

	point, err := rollback.NewPoint(model.NewTransactionID(), model.RollbackPointTypeCheckpoint, "",
		map[string]model.SnapshotID{"state": model.NewSnapshotID()})
	require.NoError(t, err)
	manager.RegisterRollbackPoint(point)

	result := manager.ValidateRollbackFeasibility(ctx, point.ID())
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "snapshot missing")
}

func TestRollbackManager_FeasibilityStaleWarning(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	// A tiny window makes any fresh point count as stale
	manager := NewRollbackManager(repo, nil, RollbackManagerConfig{FeasibilityWindow: time.Nanosecond})
	ctx := context.Background()

	snap, err := snapshot.New(model.SnapshotTypeIncremental, []byte("state"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, snap))

	point, err := rollback.NewPoint(model.NewTransactionID(), model.RollbackPointTypeCheckpoint, "",
		map[string]model.SnapshotID{"state": snap.ID()})
	require.NoError(t, err)
	manager.RegisterRollbackPoint(point)

	result := manager.ValidateRollbackFeasibility(ctx, point.ID())
	// Staleness warns but does not invalidate
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "old")
}

func TestRollbackManager_ImpactAnalysis(t *testing.T) {
	manager := NewRollbackManager(memory.NewSnapshotRepository(), nil, RollbackManagerConfig{})
	ctx := context.Background()

	point, err := rollback.NewPoint(model.NewTransactionID(), model.RollbackPointTypeManual, "",
		map[string]model.SnapshotID{
			"state":   model.NewSnapshotID(),
			"archive": model.NewSnapshotID(),
		})
	require.NoError(t, err)
	manager.RegisterRollbackPoint(point)

	analysis, err := manager.ImpactAnalysis(ctx, point.ID())
	require.NoError(t, err)
	assert.Equal(t, point.ID().String(), analysis.RollbackPointID)
	assert.Equal(t, []string{"archive", "state"}, analysis.AffectedServices)
	// A fresh point carries low risk
	assert.Equal(t, model.RiskLow, analysis.DataLossRisk)
	assert.Equal(t, time.Second, analysis.EstimatedDowntime)
	assert.NotEmpty(t, analysis.RecommendedActions)

	_, err = manager.ImpactAnalysis(ctx, model.NewRollbackPointID())
	assert.ErrorIs(t, err, model.ErrRollbackPointNotFound)
}
