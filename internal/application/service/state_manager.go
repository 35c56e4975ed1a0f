package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ductware/atomtx/internal/app"
	"github.com/ductware/atomtx/internal/application/port/output"
	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
	"github.com/ductware/atomtx/internal/domain/repository"
)

// StateManager owns the snapshot lifecycle: capture, restore, validate,
// delete, enumerate, and archive hand-off.
type StateManager interface {
	// CreateSnapshot captures the current live state into a stored snapshot
	CreateSnapshot(ctx context.Context, snapshotType model.SnapshotType) (*snapshot.Snapshot, error)

	// RestoreFromSnapshot validates a stored snapshot and applies its
	// payload back to the live state; corrupted data is never applied
	RestoreFromSnapshot(ctx context.Context, id model.SnapshotID) error

	// ValidateSnapshot recomputes a stored snapshot's checksum and compares
	ValidateSnapshot(ctx context.Context, id model.SnapshotID) model.ValidationResult

	// DeleteSnapshot removes a snapshot, reporting whether it existed
	DeleteSnapshot(ctx context.Context, id model.SnapshotID) (bool, error)

	// Snapshots returns all stored snapshots
	Snapshots(ctx context.Context) ([]*snapshot.Snapshot, error)

	// SnapshotMetadata returns the payload-free view of one snapshot;
	// (nil, nil) when the id is unknown
	SnapshotMetadata(ctx context.Context, id model.SnapshotID) (*snapshot.Metadata, error)

	// ArchiveSnapshot copies a validated snapshot to the archive gateway
	ArchiveSnapshot(ctx context.Context, id model.SnapshotID) (*output.ArchiveEntry, error)

	// RestoreFromArchive fetches an archived snapshot back into the store
	RestoreFromArchive(ctx context.Context, id model.SnapshotID) (*snapshot.Snapshot, error)
}

// StateManagerImpl implements StateManager
type StateManagerImpl struct {
	snapshots repository.SnapshotRepository
	state     output.StateAccessor
	archive   output.ArchiveGateway
	metrics   output.MetricsRecorder
	logger    app.Logger
}

// NewStateManager creates a state manager. The archive gateway may be
// nil; archive operations then report ErrArchiveNotConfigured.
func NewStateManager(
	snapshots repository.SnapshotRepository,
	state output.StateAccessor,
	archive output.ArchiveGateway,
	metrics output.MetricsRecorder,
	logger app.Logger,
) StateManager {
	if metrics == nil {
		metrics = output.NopMetricsRecorder{}
	}
	if logger == nil {
		logger = app.GetLogger()
	}
	return &StateManagerImpl{
		snapshots: snapshots,
		state:     state,
		archive:   archive,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateSnapshot captures live state; collection errors propagate,
// never silently
func (s *StateManagerImpl) CreateSnapshot(ctx context.Context, snapshotType model.SnapshotType) (*snapshot.Snapshot, error) {
	data, err := s.state.CollectState(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect state: %w", err)
	}

	snap, err := snapshot.New(snapshotType, data)
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot %s: %w", snap.ID().String(), err)
	}

	s.metrics.RecordSnapshotCreated()
	s.logger.Debug("Created snapshot %s type=%s size=%d", snap.ID().String(), snapshotType, snap.Size())
	return snap, nil
}

// RestoreFromSnapshot refuses to apply missing or corrupted snapshots
func (s *StateManagerImpl) RestoreFromSnapshot(ctx context.Context, id model.SnapshotID) error {
	snap, err := s.snapshots.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("find snapshot %s: %w", id.String(), err)
	}
	if snap == nil {
		return fmt.Errorf("%w: %s", model.ErrSnapshotNotFound, id.String())
	}

	if result := snap.Validate(); !result.IsValid {
		s.metrics.RecordCorruptionDetected()
		s.logger.Error("Refusing to restore snapshot %s: %s", id.String(), strings.Join(result.Errors, "; "))
		return fmt.Errorf("%w: %s: %s", model.ErrSnapshotCorrupted, id.String(), strings.Join(result.Errors, "; "))
	}

	if err := s.state.ApplyState(ctx, snap.Data()); err != nil {
		return fmt.Errorf("apply snapshot %s: %w", id.String(), err)
	}

	s.metrics.RecordSnapshotRestored()
	s.logger.Info("Restored state from snapshot %s", id.String())
	return nil
}

// ValidateSnapshot reports corruption without repairing anything
func (s *StateManagerImpl) ValidateSnapshot(ctx context.Context, id model.SnapshotID) model.ValidationResult {
	result := model.NewValidationResult()

	snap, err := s.snapshots.Find(ctx, id)
	if err != nil {
		result.AddError(fmt.Sprintf("find snapshot %s: %v", id.String(), err))
		return result
	}
	if snap == nil {
		result.AddError(fmt.Sprintf("snapshot not found: %s", id.String()))
		return result
	}

	result = snap.Validate()
	if !result.IsValid {
		s.metrics.RecordCorruptionDetected()
	}
	return result
}

// DeleteSnapshot removes a snapshot and reports whether it existed
func (s *StateManagerImpl) DeleteSnapshot(ctx context.Context, id model.SnapshotID) (bool, error) {
	existed, err := s.snapshots.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", id.String(), err)
	}
	if existed {
		s.logger.Debug("Deleted snapshot %s", id.String())
	}
	return existed, nil
}

// Snapshots enumerates all stored snapshots
func (s *StateManagerImpl) Snapshots(ctx context.Context) ([]*snapshot.Snapshot, error) {
	return s.snapshots.List(ctx)
}

// SnapshotMetadata returns the payload-free view; (nil, nil) when absent
func (s *StateManagerImpl) SnapshotMetadata(ctx context.Context, id model.SnapshotID) (*snapshot.Metadata, error) {
	return s.snapshots.FindMetadata(ctx, id)
}

// ArchiveSnapshot exports a snapshot to cold storage. Corrupted
// snapshots are refused so the archive only ever holds valid data.
func (s *StateManagerImpl) ArchiveSnapshot(ctx context.Context, id model.SnapshotID) (*output.ArchiveEntry, error) {
	if s.archive == nil {
		return nil, model.ErrArchiveNotConfigured
	}

	snap, err := s.snapshots.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find snapshot %s: %w", id.String(), err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrSnapshotNotFound, id.String())
	}
	if result := snap.Validate(); !result.IsValid {
		s.metrics.RecordCorruptionDetected()
		return nil, fmt.Errorf("%w: %s: %s", model.ErrSnapshotCorrupted, id.String(), strings.Join(result.Errors, "; "))
	}

	entry, err := s.archive.SaveSnapshot(ctx, output.SaveSnapshotRequest{
		SnapshotID: snap.ID().String(),
		Type:       snap.Type().String(),
		Checksum:   snap.Checksum(),
		Content:    snap.Data(),
		CapturedAt: snap.Timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("archive snapshot %s: %w", id.String(), err)
	}

	s.logger.Info("Archived snapshot %s to %s", id.String(), entry.StoragePath)
	return entry, nil
}

// RestoreFromArchive fetches an archived snapshot, verifies its checksum
// against the recorded one, and saves it back into the live store.
func (s *StateManagerImpl) RestoreFromArchive(ctx context.Context, id model.SnapshotID) (*snapshot.Snapshot, error) {
	if s.archive == nil {
		return nil, model.ErrArchiveNotConfigured
	}

	archived, err := s.archive.LoadSnapshot(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("load archived snapshot %s: %w", id.String(), err)
	}

	if err := snapshot.ValidateDataChecksum(archived.Content, archived.Entry.Checksum, snapshot.ChecksumSHA256); err != nil {
		s.metrics.RecordCorruptionDetected()
		return nil, fmt.Errorf("%w: archived %s: %v", model.ErrSnapshotCorrupted, id.String(), err)
	}

	snapType := model.SnapshotType(archived.Entry.Type)
	snap, err := snapshot.Reconstruct(id, archived.Entry.CapturedAt, snapType,
		archived.Content, archived.Entry.Checksum, int64(len(archived.Content)), snapshot.CompressionNone)
	if err != nil {
		return nil, fmt.Errorf("reconstruct archived snapshot %s: %w", id.String(), err)
	}

	if err := s.snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save restored snapshot %s: %w", id.String(), err)
	}

	s.logger.Info("Restored snapshot %s from archive", id.String())
	return snap, nil
}
