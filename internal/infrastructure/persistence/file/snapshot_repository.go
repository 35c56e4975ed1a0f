package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

const (
	payloadFile = "payload.bin"
	metaFile    = "meta.json"
)

// SnapshotRepository persists snapshots under <baseDir>/<snapshot-id>/
// as a payload file plus a metadata sidecar. The sidecar alone serves
// metadata queries so listings never read payloads.
type SnapshotRepository struct {
	fs      afero.Fs
	baseDir string
}

// NewSnapshotRepository creates a file-based snapshot repository rooted
// at baseDir
func NewSnapshotRepository(fs afero.Fs, baseDir string) *SnapshotRepository {
	return &SnapshotRepository{fs: fs, baseDir: baseDir}
}

// Save persists a snapshot's payload and metadata atomically
func (r *SnapshotRepository) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	dir := r.snapshotDir(snap.ID())

	if err := WriteFileAtomic(r.fs, filepath.Join(dir, payloadFile), snap.Data()); err != nil {
		return fmt.Errorf("write snapshot payload: %w", err)
	}

	metaData, err := json.MarshalIndent(snap.Metadata(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot metadata: %w", err)
	}
	if err := WriteFileAtomic(r.fs, filepath.Join(dir, metaFile), metaData); err != nil {
		return fmt.Errorf("write snapshot metadata: %w", err)
	}
	return nil
}

// Find loads a snapshot by id, or (nil, nil) when absent
func (r *SnapshotRepository) Find(ctx context.Context, id model.SnapshotID) (*snapshot.Snapshot, error) {
	meta, err := r.readMeta(id)
	if err != nil || meta == nil {
		return nil, err
	}

	data, err := afero.ReadFile(r.fs, filepath.Join(r.snapshotDir(id), payloadFile))
	if err != nil {
		return nil, fmt.Errorf("read snapshot payload %s: %w", id.String(), err)
	}
	return r.reconstruct(id, meta, data)
}

// FindMetadata loads a snapshot's metadata sidecar, or (nil, nil) when
// absent
func (r *SnapshotRepository) FindMetadata(ctx context.Context, id model.SnapshotID) (*snapshot.Metadata, error) {
	return r.readMeta(id)
}

// Delete removes a snapshot's directory, reporting whether it existed
func (r *SnapshotRepository) Delete(ctx context.Context, id model.SnapshotID) (bool, error) {
	dir := r.snapshotDir(id)
	if _, err := r.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat snapshot %s: %w", id.String(), err)
	}
	if err := r.fs.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", id.String(), err)
	}
	return true, nil
}

// List loads all stored snapshots, oldest capture first
func (r *SnapshotRepository) List(ctx context.Context) ([]*snapshot.Snapshot, error) {
	metas, err := r.ListMetadata(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*snapshot.Snapshot, 0, len(metas))
	for _, meta := range metas {
		id, err := model.NewSnapshotIDFromString(meta.ID)
		if err != nil {
			return nil, fmt.Errorf("stored snapshot has invalid id %q: %w", meta.ID, err)
		}
		snap, err := r.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			result = append(result, snap)
		}
	}
	return result, nil
}

// ListMetadata reads every metadata sidecar, oldest capture first
func (r *SnapshotRepository) ListMetadata(ctx context.Context) ([]*snapshot.Metadata, error) {
	entries, err := afero.ReadDir(r.fs, r.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var metas []*snapshot.Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := r.readMetaPath(filepath.Join(r.baseDir, entry.Name(), metaFile))
		if err != nil {
			return nil, err
		}
		if meta != nil {
			metas = append(metas, meta)
		}
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Timestamp.Equal(metas[j].Timestamp) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].Timestamp.Before(metas[j].Timestamp)
	})
	return metas, nil
}

func (r *SnapshotRepository) snapshotDir(id model.SnapshotID) string {
	return filepath.Join(r.baseDir, id.String())
}

func (r *SnapshotRepository) readMeta(id model.SnapshotID) (*snapshot.Metadata, error) {
	return r.readMetaPath(filepath.Join(r.snapshotDir(id), metaFile))
}

func (r *SnapshotRepository) readMetaPath(path string) (*snapshot.Metadata, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot metadata %s: %w", path, err)
	}

	var meta snapshot.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse snapshot metadata %s: %w", path, err)
	}
	return &meta, nil
}

func (r *SnapshotRepository) reconstruct(id model.SnapshotID, meta *snapshot.Metadata, data []byte) (*snapshot.Snapshot, error) {
	snap, err := snapshot.Reconstruct(id, meta.Timestamp, model.SnapshotType(meta.Type),
		data, meta.Checksum, meta.Size, meta.Compression)
	if err != nil {
		return nil, fmt.Errorf("reconstruct snapshot %s: %w", id.String(), err)
	}
	return snap, nil
}
