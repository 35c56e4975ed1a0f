package output

import (
	"context"
	"time"
)

// ArchiveGateway is the interface for cold snapshot storage
// Supports local filesystem and cloud storage (S3)
type ArchiveGateway interface {
	// SaveSnapshot persists a snapshot payload to the archive
	SaveSnapshot(ctx context.Context, req SaveSnapshotRequest) (*ArchiveEntry, error)

	// LoadSnapshot retrieves an archived snapshot payload
	LoadSnapshot(ctx context.Context, snapshotID string) (*ArchivedSnapshot, error)

	// ListSnapshots lists all archived snapshot entries
	ListSnapshots(ctx context.Context) ([]*ArchiveEntry, error)

	// DeleteSnapshot removes an archived snapshot
	DeleteSnapshot(ctx context.Context, snapshotID string) error
}

// SaveSnapshotRequest represents a request to archive a snapshot
type SaveSnapshotRequest struct {
	SnapshotID string            // Snapshot id, used as the archive key
	Type       string            // full or incremental
	Checksum   string            // Payload checksum at capture time
	Content    []byte            // Uncompressed snapshot payload
	CapturedAt time.Time         // Original capture timestamp
	Metadata   map[string]string // Additional metadata
}

// ArchivedSnapshot represents a snapshot retrieved from the archive
type ArchivedSnapshot struct {
	Entry   ArchiveEntry // Archive entry metadata
	Content []byte       // Uncompressed snapshot payload
}

// ArchiveEntry contains information about an archived snapshot
type ArchiveEntry struct {
	ID          string            // Archive object id
	SnapshotID  string            // Archived snapshot id
	Type        string            // full or incremental
	Checksum    string            // Payload checksum at capture time
	StoragePath string            // Storage path (e.g., s3://bucket/key)
	Compression string            // Stored payload compression tag
	Size        int64             // Stored payload size in bytes
	CapturedAt  time.Time         // Original capture timestamp
	ArchivedAt  time.Time         // Archive timestamp
	Metadata    map[string]string // Additional metadata
}
