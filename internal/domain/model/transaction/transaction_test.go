package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

// stubSnapshotTaker records calls and serves canned snapshots
type stubSnapshotTaker struct {
	created  []model.SnapshotID
	restored []model.SnapshotID
	fail     error
}

func (s *stubSnapshotTaker) CreateSnapshot(_ context.Context, snapshotType model.SnapshotType) (*snapshot.Snapshot, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	snap, err := snapshot.New(snapshotType, []byte("state"))
	if err != nil {
		return nil, err
	}
	s.created = append(s.created, snap.ID())
	return snap, nil
}

func (s *stubSnapshotTaker) RestoreFromSnapshot(_ context.Context, id model.SnapshotID) error {
	if s.fail != nil {
		return s.fail
	}
	s.restored = append(s.restored, id)
	return nil
}

func newTestTransaction(observer PointObserver) (*Transaction, *stubSnapshotTaker) {
	taker := &stubSnapshotTaker{}
	txCtx := model.NewTransactionContext(model.NewTransactionID(), "alice", "session-1", nil)
	return New(txCtx, taker, observer), taker
}

func noopOp(id string, log *[]string) *operation.FuncOperation {
	return &operation.FuncOperation{
		Desc: operation.Descriptor{ID: id, Name: id},
		ExecuteFn: func(context.Context, *model.TransactionContext) (interface{}, error) {
			return id, nil
		},
		RollbackFn: func(context.Context, *model.TransactionContext) error {
			if log != nil {
				*log = append(*log, id)
			}
			return nil
		},
	}
}

func TestExecute_CommitPath(t *testing.T) {
	txn, _ := newTestTransaction(nil)
	ctx := context.Background()

	if txn.Status() != model.StatusPending {
		t.Fatalf("Expected PENDING, got %s", txn.Status())
	}

	value, err := txn.Execute(ctx, func(context.Context) (interface{}, error) {
		if txn.Status() != model.StatusActive {
			t.Errorf("Expected ACTIVE during execution, got %s", txn.Status())
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if value != 42 {
		t.Errorf("Expected 42, got %v", value)
	}
	if txn.StartedAt().IsZero() {
		t.Error("Expected a start timestamp")
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("Unexpected commit error: %v", err)
	}
	if txn.Status() != model.StatusCommitted {
		t.Errorf("Expected COMMITTED, got %s", txn.Status())
	}
}

func TestExecute_FailureMovesToFailed(t *testing.T) {
	txn, _ := newTestTransaction(nil)

	boom := errors.New("boom")
	_, err := txn.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if txn.Status() != model.StatusFailed {
		t.Errorf("Expected FAILED, got %s", txn.Status())
	}
	if txn.LastError() != boom {
		t.Errorf("Expected recorded cause, got %v", txn.LastError())
	}
}

func TestExecute_RejectedInTerminalStatus(t *testing.T) {
	txn, _ := newTestTransaction(nil)
	ctx := context.Background()

	if _, err := txn.Execute(ctx, func(context.Context) (interface{}, error) { return nil, nil }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, err := txn.Execute(ctx, func(context.Context) (interface{}, error) { return nil, nil })
	if !errors.Is(err, model.ErrInvalidTransactionState) {
		t.Errorf("Expected invalid state error, got %v", err)
	}
	if err := txn.AddOperation(noopOp("late", nil)); !errors.Is(err, model.ErrInvalidTransactionState) {
		t.Errorf("Expected invalid state error, got %v", err)
	}
	if err := txn.Commit(); !errors.Is(err, model.ErrInvalidTransactionState) {
		t.Errorf("Expected double commit rejection, got %v", err)
	}
	if err := txn.Rollback(ctx); !errors.Is(err, model.ErrInvalidTransactionState) {
		t.Errorf("Expected rollback rejection after commit, got %v", err)
	}
}

func TestRollback_ReverseOrder(t *testing.T) {
	txn, _ := newTestTransaction(nil)
	ctx := context.Background()

	var undone []string
	for _, id := range []string{"op-1", "op-2", "op-3"} {
		if err := txn.AddOperation(noopOp(id, &undone)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if err := txn.Rollback(ctx); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if txn.Status() != model.StatusRolledBack {
		t.Errorf("Expected ROLLED_BACK, got %s", txn.Status())
	}
	want := []string{"op-3", "op-2", "op-1"}
	if len(undone) != 3 || undone[0] != want[0] || undone[1] != want[1] || undone[2] != want[2] {
		t.Errorf("Expected reverse order %v, got %v", want, undone)
	}
}

func TestRollback_BestEffortCollectsFailures(t *testing.T) {
	txn, _ := newTestTransaction(nil)
	ctx := context.Background()

	var undone []string
	bad := &operation.FuncOperation{
		Desc: operation.Descriptor{ID: "op-2", Name: "op-2"},
		ExecuteFn: func(context.Context, *model.TransactionContext) (interface{}, error) {
			return nil, nil
		},
		RollbackFn: func(context.Context, *model.TransactionContext) error {
			return errors.New("target vanished")
		},
	}

	txn.AddOperation(noopOp("op-1", &undone))
	txn.AddOperation(bad)
	txn.AddOperation(noopOp("op-3", &undone))

	if err := txn.Rollback(ctx); err != nil {
		t.Fatalf("A failing step must not abort the rollback: %v", err)
	}
	if txn.Status() != model.StatusRolledBack {
		t.Errorf("Expected ROLLED_BACK, got %s", txn.Status())
	}
	// Both healthy steps still ran
	if len(undone) != 2 {
		t.Errorf("Expected 2 undone operations, got %v", undone)
	}

	failures := txn.RollbackFailures()
	if len(failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(failures))
	}
	if failures[0].OperationID != "op-2" || failures[0].Message != "target vanished" {
		t.Errorf("Unexpected failure record: %+v", failures[0])
	}
}

func TestRollback_AllowedAfterFailed(t *testing.T) {
	txn, _ := newTestTransaction(nil)
	ctx := context.Background()

	if err := txn.MarkFailed(errors.New("boom")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := txn.Rollback(ctx); err != nil {
		t.Fatalf("FAILED must still allow the terminal rollback: %v", err)
	}
	if txn.Status() != model.StatusRolledBack {
		t.Errorf("Expected ROLLED_BACK, got %s", txn.Status())
	}
}

func TestCreateCheckpoint(t *testing.T) {
	var observed []*rollback.Point
	txn, taker := newTestTransaction(func(p *rollback.Point) {
		observed = append(observed, p)
	})
	ctx := context.Background()

	point, err := txn.CreateCheckpoint(ctx, "Before step: widen table")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if point.Type() != model.RollbackPointTypeCheckpoint {
		t.Errorf("Expected CHECKPOINT, got %s", point.Type())
	}
	if !point.TransactionID().Equals(txn.ID()) {
		t.Error("Expected the point bound to this transaction")
	}
	if len(taker.created) != 1 {
		t.Fatalf("Expected 1 snapshot taken, got %d", len(taker.created))
	}
	if !point.Snapshots()["state"].Equals(taker.created[0]) {
		t.Error("Expected the point to reference the taken snapshot")
	}
	if len(txn.RollbackPoints()) != 1 {
		t.Error("Expected the point recorded on the transaction")
	}
	if len(observed) != 1 || !observed[0].ID().Equals(point.ID()) {
		t.Error("Expected the observer notified")
	}
}

func TestCreateCheckpoint_SnapshotFailure(t *testing.T) {
	txn, taker := newTestTransaction(nil)
	taker.fail = errors.New("disk full")

	if _, err := txn.CreateCheckpoint(context.Background(), "doomed"); err == nil {
		t.Fatal("Expected snapshot failure to surface")
	}
	if len(txn.RollbackPoints()) != 0 {
		t.Error("A failed checkpoint must not be recorded")
	}
}

func TestRollbackToCheckpoint(t *testing.T) {
	txn, taker := newTestTransaction(nil)
	ctx := context.Background()

	if _, err := txn.Execute(ctx, func(context.Context) (interface{}, error) { return nil, nil }); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	point, err := txn.CreateCheckpoint(ctx, "midpoint")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := txn.RollbackToCheckpoint(ctx, point.ID()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Partial restore; the transaction keeps running
	if txn.Status() != model.StatusActive {
		t.Errorf("Expected ACTIVE after checkpoint restore, got %s", txn.Status())
	}
	if len(taker.restored) != 1 || !taker.restored[0].Equals(taker.created[0]) {
		t.Errorf("Expected the checkpoint snapshot restored, got %v", taker.restored)
	}

	err = txn.RollbackToCheckpoint(ctx, model.NewRollbackPointID())
	if !errors.Is(err, model.ErrCheckpointNotFound) {
		t.Errorf("Expected checkpoint not found, got %v", err)
	}
}

func TestValidate_Aggregates(t *testing.T) {
	txn, _ := newTestTransaction(nil)
	ctx := context.Background()

	txn.AddOperation(noopOp("op-1", nil))
	txn.AddOperation(&operation.FuncOperation{
		Desc: operation.Descriptor{ID: "op-2"},
		ValidateFn: func(context.Context, *model.TransactionContext) model.ValidationResult {
			result := model.NewValidationResult()
			result.AddError("missing target")
			return result
		},
	})
	txn.AddOperation(&operation.FuncOperation{
		Desc: operation.Descriptor{ID: "op-3"},
		ValidateFn: func(context.Context, *model.TransactionContext) model.ValidationResult {
			result := model.NewValidationResult()
			result.AddError("bad mode")
			result.AddWarning("slow path")
			return result
		},
	})

	result := txn.Validate(ctx)
	if result.IsValid {
		t.Fatal("Expected aggregate to be invalid")
	}
	// Validation never stops at the first failing operation
	if len(result.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got %v", result.Warnings)
	}
}

func TestSetIsolationLevel(t *testing.T) {
	txn, _ := newTestTransaction(nil)

	if txn.IsolationLevel() != model.IsolationReadCommitted {
		t.Errorf("Expected READ_COMMITTED default, got %s", txn.IsolationLevel())
	}
	if err := txn.SetIsolationLevel(model.IsolationSerializable); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if txn.IsolationLevel() != model.IsolationSerializable {
		t.Errorf("Expected SERIALIZABLE, got %s", txn.IsolationLevel())
	}
	if err := txn.SetIsolationLevel("CHAOS"); err == nil {
		t.Error("Expected error for unknown level")
	}
}
