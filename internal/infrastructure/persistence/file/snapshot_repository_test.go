package file

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/snapshot"
)

func newTestRepo(t *testing.T) (*SnapshotRepository, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewSnapshotRepository(fs, "/data/snapshots"), fs
}

func TestWriteFileAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, WriteFileAtomic(fs, "/data/nested/out.json", []byte("first")))
	data, err := afero.ReadFile(fs, "/data/nested/out.json")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	// Overwrites replace the content completely
	require.NoError(t, WriteFileAtomic(fs, "/data/nested/out.json", []byte("second")))
	data, err = afero.ReadFile(fs, "/data/nested/out.json")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// No temp files linger after the rename
	entries, err := afero.ReadDir(fs, "/data/nested")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestSnapshotRepository_SaveAndFind(t *testing.T) {
	repo, fs := newTestRepo(t)
	ctx := context.Background()

	snap, err := snapshot.New(model.SnapshotTypeFull, []byte(`{"balance":"100"}`))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, snap))

	// Payload and sidecar both land on disk
	exists, err := afero.Exists(fs, "/data/snapshots/"+snap.ID().String()+"/payload.bin")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(fs, "/data/snapshots/"+snap.ID().String()+"/meta.json")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := repo.Find(ctx, snap.ID())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.ID().Equals(snap.ID()))
	assert.Equal(t, snap.Type(), got.Type())
	assert.Equal(t, snap.Checksum(), got.Checksum())
	assert.Equal(t, snap.Data(), got.Data())
	assert.WithinDuration(t, snap.Timestamp(), got.Timestamp(), time.Millisecond)
	assert.True(t, got.Validate().IsValid)
}

func TestSnapshotRepository_FindAbsent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.Find(ctx, model.NewSnapshotID())
	require.NoError(t, err)
	assert.Nil(t, got)

	meta, err := repo.FindMetadata(ctx, model.NewSnapshotID())
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestSnapshotRepository_FindMetadata(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	snap, err := snapshot.New(model.SnapshotTypeIncremental, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, snap))

	meta, err := repo.FindMetadata(ctx, snap.ID())
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, snap.ID().String(), meta.ID)
	assert.Equal(t, "incremental", meta.Type)
	assert.Equal(t, snap.Checksum(), meta.Checksum)
	assert.Equal(t, snap.Size(), meta.Size)
}

func TestSnapshotRepository_Delete(t *testing.T) {
	repo, fs := newTestRepo(t)
	ctx := context.Background()

	snap, err := snapshot.New(model.SnapshotTypeFull, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, snap))

	existed, err := repo.Delete(ctx, snap.ID())
	require.NoError(t, err)
	assert.True(t, existed)

	exists, err := afero.DirExists(fs, "/data/snapshots/"+snap.ID().String())
	require.NoError(t, err)
	assert.False(t, exists)

	existed, err = repo.Delete(ctx, snap.ID())
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestSnapshotRepository_ListOrdersByCapture(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	// Distinct capture timestamps, saved out of order
	older := reconstructAt(t, time.Now().Add(-2*time.Hour))
	newer := reconstructAt(t, time.Now())
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, older))

	snaps, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].ID().Equals(older.ID()))
	assert.True(t, snaps[1].ID().Equals(newer.ID()))

	metas, err := repo.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, older.ID().String(), metas[0].ID)
}

func TestSnapshotRepository_ListEmpty(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	snaps, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func reconstructAt(t *testing.T, capturedAt time.Time) *snapshot.Snapshot {
	t.Helper()

	data := []byte("payload " + capturedAt.String())
	sum, err := snapshot.CalculateDataChecksum(data, snapshot.ChecksumSHA256)
	require.NoError(t, err)
	snap, err := snapshot.Reconstruct(model.NewSnapshotID(), capturedAt, model.SnapshotTypeFull,
		data, sum, int64(len(data)), snapshot.CompressionNone)
	require.NoError(t, err)
	return snap
}
