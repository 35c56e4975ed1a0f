package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ductware/atomtx/internal/app"
	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/repository"
)

// RollbackManager plans and executes standalone undo strategies and
// answers feasibility and impact questions about rollback points.
type RollbackManager interface {
	// CreateRollbackStrategy builds an undo plan over the given operations
	CreateRollbackStrategy(ctx context.Context, operations []operation.AtomicOperation, kind model.StrategyKind) (*rollback.Strategy, error)

	// ExecuteRollbackStrategy runs a stored plan. The bool reports whether
	// every step succeeded; an error is returned only for an unknown id.
	ExecuteRollbackStrategy(ctx context.Context, id model.StrategyID) (bool, error)

	// ValidateRollbackFeasibility checks whether a rollback point can
	// still be restored: its snapshots exist, pass validation, and the
	// point is not stale
	ValidateRollbackFeasibility(ctx context.Context, pointID model.RollbackPointID) model.ValidationResult

	// ImpactAnalysis estimates the blast radius of restoring a point
	ImpactAnalysis(ctx context.Context, pointID model.RollbackPointID) (*rollback.ImpactAnalysis, error)

	// RegisterRollbackPoint records a point created elsewhere so that
	// feasibility and impact queries can resolve it. Matches the
	// transaction.PointObserver signature.
	RegisterRollbackPoint(point *rollback.Point)
}

// RollbackManagerConfig holds configuration for RollbackManagerImpl
type RollbackManagerConfig struct {
	// FeasibilityWindow is the age beyond which a rollback point draws a
	// staleness warning
	FeasibilityWindow time.Duration
}

// DefaultRollbackManagerConfig returns the default configuration
func DefaultRollbackManagerConfig() RollbackManagerConfig {
	return RollbackManagerConfig{
		FeasibilityWindow: 24 * time.Hour,
	}
}

// RollbackManagerImpl implements RollbackManager
type RollbackManagerImpl struct {
	mu         sync.RWMutex
	strategies map[model.StrategyID]*rollback.Strategy
	points     map[model.RollbackPointID]*rollback.Point

	snapshots repository.SnapshotRepository
	logger    app.Logger
	config    RollbackManagerConfig
}

// NewRollbackManager creates a rollback manager
func NewRollbackManager(snapshots repository.SnapshotRepository, logger app.Logger, config RollbackManagerConfig) *RollbackManagerImpl {
	if logger == nil {
		logger = app.GetLogger()
	}
	if config.FeasibilityWindow <= 0 {
		config.FeasibilityWindow = DefaultRollbackManagerConfig().FeasibilityWindow
	}
	return &RollbackManagerImpl{
		strategies: make(map[model.StrategyID]*rollback.Strategy),
		points:     make(map[model.RollbackPointID]*rollback.Point),
		snapshots:  snapshots,
		logger:     logger,
		config:     config,
	}
}

// CreateRollbackStrategy builds and stores an undo plan
func (r *RollbackManagerImpl) CreateRollbackStrategy(ctx context.Context, operations []operation.AtomicOperation, kind model.StrategyKind) (*rollback.Strategy, error) {
	steps := make([]*rollback.Step, 0, len(operations))
	for _, op := range operations {
		steps = append(steps, rollback.NewStepFromOperation(op))
	}

	strategy, err := rollback.NewStrategy(kind, steps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.strategies[strategy.ID()] = strategy
	r.mu.Unlock()

	r.logger.Debug("Created %s rollback strategy %s steps=%d estimate=%s",
		kind, strategy.ID().String(), len(steps), strategy.EstimatedDuration())
	return strategy, nil
}

// ExecuteRollbackStrategy runs every step of a stored plan. Step
// failures never halt the run; they are logged and reflected in the
// returned bool.
func (r *RollbackManagerImpl) ExecuteRollbackStrategy(ctx context.Context, id model.StrategyID) (bool, error) {
	r.mu.RLock()
	strategy, ok := r.strategies[id]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", model.ErrStrategyNotFound, id.String())
	}

	// Standalone strategies run outside any transaction; the operations
	// still need a context value to roll back against.
	txCtx := model.NewTransactionContext(model.NewTransactionID(), "", "", map[string]interface{}{
		"rollback_strategy": id.String(),
	})

	var failed []string
	switch strategy.Kind() {
	case model.StrategyParallel:
		var mu sync.Mutex
		var g errgroup.Group
		for _, step := range strategy.Steps() {
			step := step
			g.Go(func() error {
				if err := step.Operation().Rollback(ctx, txCtx); err != nil {
					r.logger.Warn("Rollback step %s failed: %v", step.OperationID(), err)
					mu.Lock()
					failed = append(failed, step.OperationID())
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

	default:
		for _, step := range strategy.Steps() {
			if err := step.Operation().Rollback(ctx, txCtx); err != nil {
				r.logger.Warn("Rollback step %s failed: %v", step.OperationID(), err)
				failed = append(failed, step.OperationID())
			}
		}
	}

	if len(failed) > 0 {
		r.logger.Error("Rollback strategy %s finished with %d failed steps", id.String(), len(failed))
		return false, nil
	}
	r.logger.Info("Rollback strategy %s completed", id.String())
	return true, nil
}

// ValidateRollbackFeasibility checks a point's snapshots for existence
// and integrity and warns when the point has aged past the window
func (r *RollbackManagerImpl) ValidateRollbackFeasibility(ctx context.Context, pointID model.RollbackPointID) model.ValidationResult {
	result := model.NewValidationResult()

	r.mu.RLock()
	point, ok := r.points[pointID]
	r.mu.RUnlock()
	if !ok {
		result.AddError(fmt.Sprintf("rollback point not found: %s", pointID.String()))
		return result
	}

	for name, snapID := range point.Snapshots() {
		snap, err := r.snapshots.Find(ctx, snapID)
		if err != nil {
			result.AddError(fmt.Sprintf("%s: find snapshot %s: %v", name, snapID.String(), err))
			continue
		}
		if snap == nil {
			result.AddError(fmt.Sprintf("%s: snapshot missing: %s", name, snapID.String()))
			continue
		}
		result.Merge(snap.Validate())
	}

	if age := time.Since(point.Timestamp()); age > r.config.FeasibilityWindow {
		result.AddWarning(fmt.Sprintf("rollback point %s is %s old; state may have drifted",
			pointID.String(), age.Round(time.Minute)))
	}
	return result
}

// ImpactAnalysis estimates the blast radius of restoring a point. The
// figures are heuristics over point age and snapshot count, not
// measurements.
func (r *RollbackManagerImpl) ImpactAnalysis(ctx context.Context, pointID model.RollbackPointID) (*rollback.ImpactAnalysis, error) {
	r.mu.RLock()
	point, ok := r.points[pointID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrRollbackPointNotFound, pointID.String())
	}

	refs := point.Snapshots()
	services := make([]string, 0, len(refs))
	for name := range refs {
		services = append(services, name)
	}
	sort.Strings(services)

	age := time.Since(point.Timestamp())
	risk := model.RiskHigh
	switch {
	case age < time.Hour:
		risk = model.RiskLow
	case age < r.config.FeasibilityWindow:
		risk = model.RiskMedium
	}

	actions := []string{
		"validate rollback feasibility before restoring",
		"create a snapshot of the current state first",
	}
	if risk == model.RiskHigh {
		actions = append(actions, "notify owners of affected services before proceeding")
	}

	return &rollback.ImpactAnalysis{
		RollbackPointID:    pointID.String(),
		AffectedServices:   services,
		AffectedUsers:      1,
		DataLossRisk:       risk,
		EstimatedDowntime:  time.Duration(len(refs)) * 500 * time.Millisecond,
		RecommendedActions: actions,
	}, nil
}

// RegisterRollbackPoint records a point for later feasibility and
// impact queries
func (r *RollbackManagerImpl) RegisterRollbackPoint(point *rollback.Point) {
	if point == nil {
		return
	}
	r.mu.Lock()
	r.points[point.ID()] = point
	r.mu.Unlock()
}
