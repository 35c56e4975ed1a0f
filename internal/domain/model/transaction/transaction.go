// Package transaction implements the single unit of atomic work: a
// status machine over an ordered operation list and its checkpoints.
package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

// SnapshotTaker is the narrow capability a transaction needs for
// checkpoints. The StateManager service satisfies it.
type SnapshotTaker interface {
	CreateSnapshot(ctx context.Context, snapshotType model.SnapshotType) (*snapshot.Snapshot, error)
	RestoreFromSnapshot(ctx context.Context, id model.SnapshotID) error
}

// PointObserver is notified of every rollback point the transaction
// creates, so callers can keep an external registry.
type PointObserver func(*rollback.Point)

// Transaction tracks status, the ordered list of added operations, and
// the ordered list of rollback points. Methods are safe for concurrent
// use, but a single transaction is meant to be driven by one goroutine;
// the engine never shares one across callers.
type Transaction struct {
	mu               sync.Mutex
	id               model.TransactionID
	status           model.TransactionStatus
	txCtx            *model.TransactionContext
	operations       []operation.AtomicOperation
	points           []*rollback.Point
	isolation        model.IsolationLevel
	snapshots        SnapshotTaker
	observer         PointObserver
	rollbackFailures []RollbackFailure
	lastErr          error
	createdAt        time.Time
	startedAt        time.Time
}

// New creates a PENDING transaction. The observer may be nil.
func New(txCtx *model.TransactionContext, snapshots SnapshotTaker, observer PointObserver) *Transaction {
	return &Transaction{
		id:        txCtx.TransactionID(),
		status:    model.StatusPending,
		txCtx:     txCtx,
		snapshots: snapshots,
		observer:  observer,
		isolation: model.IsolationReadCommitted,
		createdAt: time.Now(),
	}
}

// ID returns the transaction id
func (t *Transaction) ID() model.TransactionID {
	return t.id
}

// Status returns the current status
func (t *Transaction) Status() model.TransactionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Context returns the immutable transaction context
func (t *Transaction) Context() *model.TransactionContext {
	return t.txCtx
}

// CreatedAt returns the creation time
func (t *Transaction) CreatedAt() time.Time {
	return t.createdAt
}

// StartedAt returns the time of the first Execute call; zero if never run
func (t *Transaction) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// LastError returns the error that moved the transaction to FAILED
func (t *Transaction) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Operations returns a copy of the added operations in insertion order
func (t *Transaction) Operations() []operation.AtomicOperation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]operation.AtomicOperation(nil), t.operations...)
}

// RollbackPoints returns a copy of the checkpoints created so far
func (t *Transaction) RollbackPoints() []*rollback.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*rollback.Point(nil), t.points...)
}

// RollbackFailures returns the per-operation failures collected by the
// last Rollback call
func (t *Transaction) RollbackFailures() []RollbackFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RollbackFailure(nil), t.rollbackFailures...)
}

// SetIsolationLevel records the requested isolation label. The label is
// not enforced; it only describes caller intent.
func (t *Transaction) SetIsolationLevel(level model.IsolationLevel) error {
	if !level.IsValid() {
		return fmt.Errorf("invalid isolation level: %s", level)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isolation = level
	return nil
}

// IsolationLevel returns the recorded isolation label
func (t *Transaction) IsolationLevel() model.IsolationLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isolation
}

// Execute runs a unit of work, moving PENDING to ACTIVE first. An error
// from fn forces FAILED and is returned, never swallowed; the caller is
// then responsible for invoking Rollback.
func (t *Transaction) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	t.mu.Lock()
	switch t.status {
	case model.StatusPending:
		t.status = model.StatusActive
		t.startedAt = time.Now()
	case model.StatusActive:
		// already running; additional units of work are fine
	default:
		status := t.status
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot execute in status %s", model.ErrInvalidTransactionState, status)
	}
	t.mu.Unlock()

	// fn may call back into this transaction (AddOperation,
	// CreateCheckpoint), so it runs outside the lock.
	result, err := fn(ctx)
	if err != nil {
		t.mu.Lock()
		if t.status.CanTransitionTo(model.StatusFailed) {
			t.status = model.StatusFailed
			t.lastErr = err
		}
		t.mu.Unlock()
		return nil, err
	}
	return result, nil
}

// AddOperation appends an operation without executing it. Operations
// accumulate so a later Rollback can undo them in reverse order.
func (t *Transaction) AddOperation(op operation.AtomicOperation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return fmt.Errorf("%w: cannot add operation in status %s", model.ErrInvalidTransactionState, t.status)
	}
	t.operations = append(t.operations, op)
	return nil
}

// CreateCheckpoint takes an incremental snapshot and records it as a
// CHECKPOINT rollback point bound to this transaction.
func (t *Transaction) CreateCheckpoint(ctx context.Context, description string) (*rollback.Point, error) {
	return t.CreatePoint(ctx, model.RollbackPointTypeCheckpoint, description)
}

// CreatePoint takes an incremental snapshot and records it as a rollback
// point of the given type.
func (t *Transaction) CreatePoint(ctx context.Context, pointType model.RollbackPointType, description string) (*rollback.Point, error) {
	t.mu.Lock()
	if t.status.IsTerminal() {
		status := t.status
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot create checkpoint in status %s", model.ErrInvalidTransactionState, status)
	}
	t.mu.Unlock()

	snap, err := t.snapshots.CreateSnapshot(ctx, model.SnapshotTypeIncremental)
	if err != nil {
		return nil, fmt.Errorf("create checkpoint snapshot: %w", err)
	}

	point, err := rollback.NewPoint(t.id, pointType, description,
		map[string]model.SnapshotID{"state": snap.ID()})
	if err != nil {
		return nil, fmt.Errorf("create rollback point: %w", err)
	}

	t.mu.Lock()
	t.points = append(t.points, point)
	t.mu.Unlock()

	if t.observer != nil {
		t.observer(point)
	}
	return point, nil
}

// RollbackToCheckpoint restores the snapshots referenced by one of this
// transaction's checkpoints. The transaction status is untouched; this
// is a mid-flight partial restore, not a terminal rollback.
func (t *Transaction) RollbackToCheckpoint(ctx context.Context, id model.RollbackPointID) error {
	t.mu.Lock()
	var point *rollback.Point
	for _, p := range t.points {
		if p.ID().Equals(id) {
			point = p
			break
		}
	}
	t.mu.Unlock()

	if point == nil {
		return fmt.Errorf("%w: %s", model.ErrCheckpointNotFound, id.String())
	}

	for name, snapID := range point.Snapshots() {
		if err := t.snapshots.RestoreFromSnapshot(ctx, snapID); err != nil {
			return fmt.Errorf("restore %s snapshot %s: %w", name, snapID.String(), err)
		}
	}
	return nil
}

// Commit finalizes the transaction as COMMITTED.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.CanTransitionTo(model.StatusCommitted) {
		return fmt.Errorf("%w: cannot commit in status %s", model.ErrInvalidTransactionState, t.status)
	}
	t.status = model.StatusCommitted
	return nil
}

// Rollback undoes the added operations in reverse insertion order. A
// failing operation rollback is collected and the remaining ones are
// still attempted; the transaction ends ROLLED_BACK regardless. The
// only error case is a status that cannot start a rollback at all.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if !t.status.CanTransitionTo(model.StatusRolledBack) {
		status := t.status
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot roll back in status %s", model.ErrInvalidTransactionState, status)
	}
	ops := append([]operation.AtomicOperation(nil), t.operations...)
	t.mu.Unlock()

	var failures []RollbackFailure
	for i := len(ops) - 1; i >= 0; i-- {
		if err := ops[i].Rollback(ctx, t.txCtx); err != nil {
			failures = append(failures, RollbackFailure{
				OperationID: ops[i].Descriptor().ID,
				Message:     err.Error(),
			})
		}
	}

	t.mu.Lock()
	t.rollbackFailures = failures
	t.status = model.StatusRolledBack
	t.mu.Unlock()
	return nil
}

// MarkFailed forces the transaction to FAILED, recording the cause.
// Used for aborts that happen before any execution, such as failed
// pre-execution validation.
func (t *Transaction) MarkFailed(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.CanTransitionTo(model.StatusFailed) {
		return fmt.Errorf("%w: cannot fail in status %s", model.ErrInvalidTransactionState, t.status)
	}
	t.status = model.StatusFailed
	t.lastErr = err
	return nil
}

// Validate runs every added operation's Validate and aggregates all
// errors and warnings; it never stops at the first failure.
func (t *Transaction) Validate(ctx context.Context) model.ValidationResult {
	ops := t.Operations()
	result := model.NewValidationResult()
	for _, op := range ops {
		result.Merge(op.Validate(ctx, t.txCtx))
	}
	return result
}
