package archive

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ductware/atomtx/internal/application/port/output"
)

func saveRequest(snapshotID, content string, capturedAt time.Time) output.SaveSnapshotRequest {
	return output.SaveSnapshotRequest{
		SnapshotID: snapshotID,
		Type:       "full",
		Checksum:   "checksum-" + snapshotID,
		Content:    []byte(content),
		CapturedAt: capturedAt,
		Metadata:   map[string]string{"origin": "test"},
	}
}

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte("some snapshot payload that compresses")

	compressed, err := compressPayload(payload)
	require.NoError(t, err)
	assert.NotEqual(t, payload, compressed)

	restored, err := decompressPayload(compressed, compressionGzip)
	require.NoError(t, err)
	assert.Equal(t, payload, restored)
}

func TestDecompressPassThrough(t *testing.T) {
	// Payloads stored without gzip come back untouched
	restored, err := decompressPayload([]byte("plain"), "none")
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), restored)
}

func TestDecompressCorruptGzip(t *testing.T) {
	_, err := decompressPayload([]byte("not gzip at all"), compressionGzip)
	assert.Error(t, err)
}

func TestLocalArchiveGateway_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	gateway, err := NewLocalArchiveGateway(fs, "/archive")
	require.NoError(t, err)
	ctx := context.Background()

	capturedAt := time.Now().Add(-time.Hour)
	entry, err := gateway.SaveSnapshot(ctx, saveRequest("snap-1", "payload one", capturedAt))
	require.NoError(t, err)

	assert.Equal(t, "snap-1", entry.SnapshotID)
	assert.Equal(t, "checksum-snap-1", entry.Checksum)
	assert.Equal(t, compressionGzip, entry.Compression)
	assert.WithinDuration(t, capturedAt, entry.CapturedAt, time.Millisecond)

	// The payload is stored compressed
	exists, err := afero.Exists(fs, "/archive/snapshots/snap-1/payload.gz")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(fs, "/archive/snapshots/snap-1/metadata.json")
	require.NoError(t, err)
	assert.True(t, exists)

	archived, err := gateway.LoadSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload one"), archived.Content)
	assert.Equal(t, entry.ID, archived.Entry.ID)
	assert.Equal(t, "checksum-snap-1", archived.Entry.Checksum)
}

func TestLocalArchiveGateway_LoadAbsent(t *testing.T) {
	gateway, err := NewLocalArchiveGateway(afero.NewMemMapFs(), "/archive")
	require.NoError(t, err)

	_, err = gateway.LoadSnapshot(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalArchiveGateway_ListAndDelete(t *testing.T) {
	gateway, err := NewLocalArchiveGateway(afero.NewMemMapFs(), "/archive")
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Now()
	// Saved newest first; the listing still orders by capture time
	_, err = gateway.SaveSnapshot(ctx, saveRequest("snap-2", "two", now))
	require.NoError(t, err)
	_, err = gateway.SaveSnapshot(ctx, saveRequest("snap-1", "one", now.Add(-time.Hour)))
	require.NoError(t, err)

	entries, err := gateway.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "snap-1", entries[0].SnapshotID)
	assert.Equal(t, "snap-2", entries[1].SnapshotID)

	require.NoError(t, gateway.DeleteSnapshot(ctx, "snap-1"))
	entries, err = gateway.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap-2", entries[0].SnapshotID)
}

func TestS3ArchiveGateway_RoundTrip(t *testing.T) {
	client := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(client, "archive-bucket", "atomtx/test")
	ctx := context.Background()

	entry, err := gateway.SaveSnapshot(ctx, saveRequest("snap-1", "payload one", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "s3://archive-bucket/atomtx/test/snapshots/snap-1/payload.gz", entry.StoragePath)
	// Payload plus metadata object per snapshot
	assert.Equal(t, 2, client.ObjectCount())

	archived, err := gateway.LoadSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload one"), archived.Content)
	assert.Equal(t, "checksum-snap-1", archived.Entry.Checksum)
}

func TestS3ArchiveGateway_LoadAbsent(t *testing.T) {
	gateway := NewS3ArchiveGatewayWithClient(NewMockS3Client(), "archive-bucket", "")

	_, err := gateway.LoadSnapshot(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestS3ArchiveGateway_ListAndDelete(t *testing.T) {
	client := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(client, "archive-bucket", "atomtx")
	ctx := context.Background()

	now := time.Now()
	_, err := gateway.SaveSnapshot(ctx, saveRequest("snap-2", "two", now))
	require.NoError(t, err)
	_, err = gateway.SaveSnapshot(ctx, saveRequest("snap-1", "one", now.Add(-time.Hour)))
	require.NoError(t, err)

	entries, err := gateway.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "snap-1", entries[0].SnapshotID)

	require.NoError(t, gateway.DeleteSnapshot(ctx, "snap-2"))
	assert.Equal(t, 2, client.ObjectCount())
	entries, err = gateway.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap-1", entries[0].SnapshotID)
}

func TestMockArchiveGateway_RoundTrip(t *testing.T) {
	gateway := NewMockArchiveGateway()
	ctx := context.Background()

	_, err := gateway.SaveSnapshot(ctx, saveRequest("snap-1", "payload", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, gateway.ArchivedCount())

	archived, err := gateway.LoadSnapshot(ctx, "snap-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), archived.Content)

	require.NoError(t, gateway.DeleteSnapshot(ctx, "snap-1"))
	assert.Zero(t, gateway.ArchivedCount())
}
