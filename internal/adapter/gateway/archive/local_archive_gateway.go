package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ductware/atomtx/internal/application/port/output"
	"github.com/ductware/atomtx/internal/infrastructure/persistence/file"
)

// LocalArchiveGateway implements ArchiveGateway using the local filesystem
// Directory structure: <baseDir>/snapshots/<snapshotID>/
//   - payload.gz: gzip-compressed snapshot payload
//   - metadata.json: archive entry metadata
type LocalArchiveGateway struct {
	fs      afero.Fs
	baseDir string
}

// NewLocalArchiveGateway creates a new local filesystem-based archive gateway
func NewLocalArchiveGateway(fs afero.Fs, baseDir string) (*LocalArchiveGateway, error) {
	snapshotsDir := filepath.Join(baseDir, "snapshots")
	if err := fs.MkdirAll(snapshotsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	return &LocalArchiveGateway{
		fs:      fs,
		baseDir: baseDir,
	}, nil
}

// SaveSnapshot compresses and writes a snapshot payload to the archive directory
func (g *LocalArchiveGateway) SaveSnapshot(ctx context.Context, req output.SaveSnapshotRequest) (*output.ArchiveEntry, error) {
	compressed, err := compressPayload(req.Content)
	if err != nil {
		return nil, err
	}

	snapshotDir := g.snapshotDir(req.SnapshotID)
	payloadPath := filepath.Join(snapshotDir, payloadObject)

	entry := output.ArchiveEntry{
		ID:          generateArchiveID(req.Content),
		SnapshotID:  req.SnapshotID,
		Type:        req.Type,
		Checksum:    req.Checksum,
		StoragePath: payloadPath,
		Compression: compressionGzip,
		Size:        int64(len(compressed)),
		CapturedAt:  req.CapturedAt,
		ArchivedAt:  time.Now(),
		Metadata:    req.Metadata,
	}

	if err := file.WriteFileAtomic(g.fs, payloadPath, compressed); err != nil {
		return nil, fmt.Errorf("write payload: %w", err)
	}

	entryJSON, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal archive entry: %w", err)
	}
	metadataPath := filepath.Join(snapshotDir, metadataObject)
	if err := file.WriteFileAtomic(g.fs, metadataPath, entryJSON); err != nil {
		return nil, fmt.Errorf("write archive entry: %w", err)
	}

	return &entry, nil
}

// LoadSnapshot reads and decompresses an archived snapshot
func (g *LocalArchiveGateway) LoadSnapshot(ctx context.Context, snapshotID string) (*output.ArchivedSnapshot, error) {
	snapshotDir := g.snapshotDir(snapshotID)

	entryJSON, err := afero.ReadFile(g.fs, filepath.Join(snapshotDir, metadataObject))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archived snapshot not found: %s", snapshotID)
		}
		return nil, fmt.Errorf("read archive entry: %w", err)
	}

	var entry output.ArchiveEntry
	if err := json.Unmarshal(entryJSON, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal archive entry: %w", err)
	}

	compressed, err := afero.ReadFile(g.fs, filepath.Join(snapshotDir, payloadObject))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	content, err := decompressPayload(compressed, entry.Compression)
	if err != nil {
		return nil, err
	}

	return &output.ArchivedSnapshot{
		Entry:   entry,
		Content: content,
	}, nil
}

// ListSnapshots lists all archived snapshot entries
func (g *LocalArchiveGateway) ListSnapshots(ctx context.Context) ([]*output.ArchiveEntry, error) {
	snapshotsDir := filepath.Join(g.baseDir, "snapshots")

	dirEntries, err := afero.ReadDir(g.fs, snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*output.ArchiveEntry{}, nil
		}
		return nil, fmt.Errorf("read archive directory: %w", err)
	}

	var entries []*output.ArchiveEntry
	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() {
			continue
		}

		entryJSON, err := afero.ReadFile(g.fs, filepath.Join(snapshotsDir, dirEntry.Name(), metadataObject))
		if err != nil {
			// Skip entries with missing metadata
			continue
		}

		var entry output.ArchiveEntry
		if err := json.Unmarshal(entryJSON, &entry); err != nil {
			// Skip entries with invalid metadata
			continue
		}

		entries = append(entries, &entry)
	}

	sortEntries(entries)
	return entries, nil
}

// DeleteSnapshot removes an archived snapshot from the archive directory
func (g *LocalArchiveGateway) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	if err := g.fs.RemoveAll(g.snapshotDir(snapshotID)); err != nil {
		return fmt.Errorf("delete archived snapshot: %w", err)
	}
	return nil
}

func (g *LocalArchiveGateway) snapshotDir(snapshotID string) string {
	return filepath.Join(g.baseDir, "snapshots", snapshotID)
}
