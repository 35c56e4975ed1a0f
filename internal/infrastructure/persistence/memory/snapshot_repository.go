// Package memory provides process-local repository implementations.
// They back tests and the default engine configuration; nothing survives
// a restart.
package memory

import (
	"context"
	"sync"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

// SnapshotRepository stores snapshots in an in-process map
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*snapshot.Snapshot
	order     []string
}

// NewSnapshotRepository creates an empty in-memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		snapshots: make(map[string]*snapshot.Snapshot),
	}
}

// Save stores a snapshot, replacing any previous one with the same id
func (r *SnapshotRepository) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := snap.ID().String()
	if _, exists := r.snapshots[key]; !exists {
		r.order = append(r.order, key)
	}
	r.snapshots[key] = snap
	return nil
}

// Find returns a snapshot by id, or (nil, nil) when absent
func (r *SnapshotRepository) Find(ctx context.Context, id model.SnapshotID) (*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, exists := r.snapshots[id.String()]
	if !exists {
		return nil, nil
	}
	return snap, nil
}

// FindMetadata returns the payload-free view, or (nil, nil) when absent
func (r *SnapshotRepository) FindMetadata(ctx context.Context, id model.SnapshotID) (*snapshot.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, exists := r.snapshots[id.String()]
	if !exists {
		return nil, nil
	}
	return snap.Metadata(), nil
}

// Delete removes a snapshot, reporting whether it existed
func (r *SnapshotRepository) Delete(ctx context.Context, id model.SnapshotID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.String()
	if _, exists := r.snapshots[key]; !exists {
		return false, nil
	}
	delete(r.snapshots, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// List returns all snapshots in capture order
func (r *SnapshotRepository) List(ctx context.Context) ([]*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*snapshot.Snapshot, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.snapshots[key])
	}
	return result, nil
}

// ListMetadata returns payload-free views in capture order
func (r *SnapshotRepository) ListMetadata(ctx context.Context) ([]*snapshot.Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*snapshot.Metadata, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.snapshots[key].Metadata())
	}
	return result, nil
}
