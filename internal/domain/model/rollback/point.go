// Package rollback holds rollback points (snapshot-backed markers inside
// a transaction) and the undo strategies built over executed operations.
package rollback

import (
	"errors"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
)

// Point is a named, snapshot-backed marker that state can later be
// restored to. Immutable after creation; all maps and slices are copied
// on the way in and out.
type Point struct {
	id               model.RollbackPointID
	transactionID    model.TransactionID
	pointType        model.RollbackPointType
	timestamp        time.Time
	description      string
	snapshots        map[string]model.SnapshotID
	dependencies     []string
	validationChecks []string
	metadata         map[string]interface{}
}

// NewPoint creates a rollback point over named snapshot references
func NewPoint(txnID model.TransactionID, pointType model.RollbackPointType, description string, snapshots map[string]model.SnapshotID) (*Point, error) {
	if txnID.IsZero() {
		return nil, errors.New("rollback point requires an owning transaction id")
	}
	if !pointType.IsValid() {
		return nil, errors.New("invalid rollback point type: " + pointType.String())
	}
	if len(snapshots) == 0 {
		return nil, errors.New("rollback point requires at least one snapshot reference")
	}
	return &Point{
		id:            model.NewRollbackPointID(),
		transactionID: txnID,
		pointType:     pointType,
		timestamp:     time.Now(),
		description:   description,
		snapshots:     copySnapshotRefs(snapshots),
		metadata:      map[string]interface{}{},
	}, nil
}

// Reconstruct rebuilds a rollback point from stored values
func Reconstruct(id model.RollbackPointID, txnID model.TransactionID, pointType model.RollbackPointType, timestamp time.Time, description string, snapshots map[string]model.SnapshotID, dependencies, validationChecks []string, metadata map[string]interface{}) *Point {
	return &Point{
		id:               id,
		transactionID:    txnID,
		pointType:        pointType,
		timestamp:        timestamp,
		description:      description,
		snapshots:        copySnapshotRefs(snapshots),
		dependencies:     copyStrings(dependencies),
		validationChecks: copyStrings(validationChecks),
		metadata:         copyMeta(metadata),
	}
}

// WithDependencies returns a copy carrying the given dependency ids
func (p *Point) WithDependencies(deps []string) *Point {
	clone := *p
	clone.dependencies = copyStrings(deps)
	return &clone
}

// WithValidationChecks returns a copy carrying the given check names
func (p *Point) WithValidationChecks(checks []string) *Point {
	clone := *p
	clone.validationChecks = copyStrings(checks)
	return &clone
}

// WithMetadata returns a copy carrying the given metadata
func (p *Point) WithMetadata(metadata map[string]interface{}) *Point {
	clone := *p
	clone.metadata = copyMeta(metadata)
	return &clone
}

// ID returns the rollback point id
func (p *Point) ID() model.RollbackPointID {
	return p.id
}

// TransactionID returns the owning transaction's id
func (p *Point) TransactionID() model.TransactionID {
	return p.transactionID
}

// Type returns the rollback point type
func (p *Point) Type() model.RollbackPointType {
	return p.pointType
}

// Timestamp returns the creation time
func (p *Point) Timestamp() time.Time {
	return p.timestamp
}

// Description returns the human-readable description
func (p *Point) Description() string {
	return p.description
}

// Snapshots returns a copy of the named snapshot references
func (p *Point) Snapshots() map[string]model.SnapshotID {
	return copySnapshotRefs(p.snapshots)
}

// Dependencies returns a copy of the dependency ids
func (p *Point) Dependencies() []string {
	return copyStrings(p.dependencies)
}

// ValidationChecks returns a copy of the validation check names
func (p *Point) ValidationChecks() []string {
	return copyStrings(p.validationChecks)
}

// Metadata returns a copy of the metadata map
func (p *Point) Metadata() map[string]interface{} {
	return copyMeta(p.metadata)
}

func copySnapshotRefs(src map[string]model.SnapshotID) map[string]model.SnapshotID {
	dst := make(map[string]model.SnapshotID, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyStrings(src []string) []string {
	if src == nil {
		return nil
	}
	dst := make([]string, len(src))
	copy(dst, src)
	return dst
}

func copyMeta(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
