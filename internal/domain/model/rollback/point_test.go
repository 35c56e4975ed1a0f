package rollback

import (
	"testing"

	"github.com/ductware/atomtx/internal/domain/model"
)

func TestNewPoint(t *testing.T) {
	txnID := model.NewTransactionID()
	snapID := model.NewSnapshotID()

	point, err := NewPoint(txnID, model.RollbackPointTypeManual, "before cleanup",
		map[string]model.SnapshotID{"state": snapID})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if point.ID().IsZero() {
		t.Error("Expected a generated id")
	}
	if !point.TransactionID().Equals(txnID) {
		t.Error("Expected owning transaction id")
	}
	if point.Type() != model.RollbackPointTypeManual {
		t.Errorf("Expected MANUAL, got %s", point.Type())
	}
	if point.Description() != "before cleanup" {
		t.Errorf("Expected description round-trip, got %s", point.Description())
	}
	if point.Timestamp().IsZero() {
		t.Error("Expected a creation timestamp")
	}
	if got := point.Snapshots(); !got["state"].Equals(snapID) {
		t.Errorf("Expected snapshot reference, got %v", got)
	}
}

func TestNewPoint_Invalid(t *testing.T) {
	snaps := map[string]model.SnapshotID{"state": model.NewSnapshotID()}

	if _, err := NewPoint(model.TransactionID{}, model.RollbackPointTypeManual, "", snaps); err == nil {
		t.Error("Expected error for zero transaction id")
	}
	if _, err := NewPoint(model.NewTransactionID(), "BOOKMARK", "", snaps); err == nil {
		t.Error("Expected error for invalid point type")
	}
	if _, err := NewPoint(model.NewTransactionID(), model.RollbackPointTypeManual, "", nil); err == nil {
		t.Error("Expected error for missing snapshot references")
	}
}

func TestPoint_WithCopies(t *testing.T) {
	point, err := NewPoint(model.NewTransactionID(), model.RollbackPointTypeCheckpoint, "",
		map[string]model.SnapshotID{"state": model.NewSnapshotID()})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	enriched := point.
		WithDependencies([]string{"op-1"}).
		WithValidationChecks([]string{"fs-intact"}).
		WithMetadata(map[string]interface{}{"phase": 2})

	// The original stays untouched
	if len(point.Dependencies()) != 0 || len(point.ValidationChecks()) != 0 || len(point.Metadata()) != 0 {
		t.Error("With* must copy, not mutate")
	}
	if got := enriched.Dependencies(); len(got) != 1 || got[0] != "op-1" {
		t.Errorf("Expected [op-1], got %v", got)
	}
	if got := enriched.ValidationChecks(); len(got) != 1 || got[0] != "fs-intact" {
		t.Errorf("Expected [fs-intact], got %v", got)
	}
	if got := enriched.Metadata(); got["phase"] != 2 {
		t.Errorf("Expected phase=2, got %v", got)
	}
	if !enriched.ID().Equals(point.ID()) {
		t.Error("Copies must keep the same id")
	}
}

func TestPoint_SnapshotsIsolated(t *testing.T) {
	point, err := NewPoint(model.NewTransactionID(), model.RollbackPointTypeCheckpoint, "",
		map[string]model.SnapshotID{"state": model.NewSnapshotID()})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := point.Snapshots()
	out["injected"] = model.NewSnapshotID()
	if len(point.Snapshots()) != 1 {
		t.Error("Mutating the returned map must not affect the point")
	}
}
