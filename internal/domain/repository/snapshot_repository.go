// Package repository defines the persistence interfaces the application
// services depend on. Implementations live under infrastructure.
package repository

import (
	"context"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

// SnapshotRepository manages StateSnapshot persistence. Implementations
// must be safe for concurrent use; snapshots are keyed by generated id
// with no cross-key contention.
type SnapshotRepository interface {
	// Save stores a snapshot
	Save(ctx context.Context, snap *snapshot.Snapshot) error

	// Find retrieves a snapshot by ID
	// Returns (nil, nil) when the id is unknown
	Find(ctx context.Context, id model.SnapshotID) (*snapshot.Snapshot, error)

	// FindMetadata retrieves the payload-free view of a snapshot
	// Returns (nil, nil) when the id is unknown
	FindMetadata(ctx context.Context, id model.SnapshotID) (*snapshot.Metadata, error)

	// Delete removes a snapshot, reporting whether it existed
	Delete(ctx context.Context, id model.SnapshotID) (bool, error)

	// List returns all stored snapshots
	List(ctx context.Context) ([]*snapshot.Snapshot, error)

	// ListMetadata returns the payload-free view of all stored snapshots
	ListMetadata(ctx context.Context) ([]*snapshot.Metadata, error)
}
