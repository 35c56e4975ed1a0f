// Package snapshot holds the checksummed, timestamped state captures
// that checkpoints and manual rollbacks restore from.
package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
)

// CompressionNone tags an uncompressed payload. Archive gateways may
// store gzip-compressed copies and tag them accordingly.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// Snapshot is an opaque capture of live state. The checksum always equals
// the SHA-256 of the payload at creation time; validation recomputes and
// compares, and a mismatch is reported, never silently repaired.
type Snapshot struct {
	id           model.SnapshotID
	timestamp    time.Time
	snapshotType model.SnapshotType
	data         []byte
	checksum     string
	size         int64
	compression  string
}

// Metadata is the payload-free view of a snapshot, for cheap listing.
type Metadata struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Checksum    string    `json:"checksum"`
	Size        int64     `json:"size"`
	Compression string    `json:"compression"`
}

// New captures a payload into a Snapshot, computing size and checksum
func New(snapshotType model.SnapshotType, data []byte) (*Snapshot, error) {
	if !snapshotType.IsValid() {
		return nil, fmt.Errorf("invalid snapshot type: %s", snapshotType)
	}
	checksum, err := CalculateDataChecksum(data, ChecksumSHA256)
	if err != nil {
		return nil, fmt.Errorf("calculate snapshot checksum: %w", err)
	}
	return &Snapshot{
		id:           model.NewSnapshotID(),
		timestamp:    time.Now(),
		snapshotType: snapshotType,
		data:         copyBytes(data),
		checksum:     checksum,
		size:         int64(len(data)),
		compression:  CompressionNone,
	}, nil
}

// Reconstruct rebuilds a Snapshot from stored values. Stored checksum and
// size are trusted as-is; Validate detects any divergence from the payload.
func Reconstruct(id model.SnapshotID, timestamp time.Time, snapshotType model.SnapshotType, data []byte, checksum string, size int64, compression string) (*Snapshot, error) {
	if id.IsZero() {
		return nil, errors.New("snapshot id is required")
	}
	if compression == "" {
		compression = CompressionNone
	}
	return &Snapshot{
		id:           id,
		timestamp:    timestamp,
		snapshotType: snapshotType,
		data:         copyBytes(data),
		checksum:     checksum,
		size:         size,
		compression:  compression,
	}, nil
}

// ID returns the snapshot id
func (s *Snapshot) ID() model.SnapshotID {
	return s.id
}

// Timestamp returns the capture time
func (s *Snapshot) Timestamp() time.Time {
	return s.timestamp
}

// Type returns the snapshot type
func (s *Snapshot) Type() model.SnapshotType {
	return s.snapshotType
}

// Data returns a copy of the payload
func (s *Snapshot) Data() []byte {
	return copyBytes(s.data)
}

// Checksum returns the hex-encoded payload checksum
func (s *Snapshot) Checksum() string {
	return s.checksum
}

// Size returns the payload length in bytes
func (s *Snapshot) Size() int64 {
	return s.size
}

// Compression returns the payload compression tag
func (s *Snapshot) Compression() string {
	return s.compression
}

// Metadata returns the payload-free view
func (s *Snapshot) Metadata() *Metadata {
	return &Metadata{
		ID:          s.id.String(),
		Timestamp:   s.timestamp,
		Type:        s.snapshotType.String(),
		Checksum:    s.checksum,
		Size:        s.size,
		Compression: s.compression,
	}
}

// Validate recomputes the payload checksum and compares it with the
// stored one. Size divergence is reported as well.
func (s *Snapshot) Validate() model.ValidationResult {
	result := model.NewValidationResult()
	if err := ValidateDataChecksum(s.data, s.checksum, ChecksumSHA256); err != nil {
		result.AddError(fmt.Sprintf("snapshot %s: %v", s.id.String(), err))
	}
	if int64(len(s.data)) != s.size {
		result.AddError(fmt.Sprintf("snapshot %s: size mismatch: recorded %d, payload %d",
			s.id.String(), s.size, len(s.data)))
	}
	return result
}

func copyBytes(src []byte) []byte {
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
