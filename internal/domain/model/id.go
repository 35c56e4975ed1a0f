package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newScopedID generates a "<prefix>_<unix-ms>_<ULID>" identifier.
// The monotonic entropy source guarantees uniqueness within a process
// even for ids generated in the same millisecond.
func newScopedID(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	now := time.Now()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), id.String())
}

// TransactionID represents a unique identifier for a transaction
type TransactionID struct {
	value string
}

// NewTransactionID generates a new TransactionID
func NewTransactionID() TransactionID {
	return TransactionID{value: newScopedID("txn")}
}

// NewTransactionIDFromString creates a TransactionID from an existing string
func NewTransactionIDFromString(id string) (TransactionID, error) {
	if id == "" {
		return TransactionID{}, errors.New("transaction ID cannot be empty")
	}
	return TransactionID{value: id}, nil
}

// String returns the string representation
func (t TransactionID) String() string {
	return t.value
}

// Equals checks if two TransactionIDs are equal
func (t TransactionID) Equals(other TransactionID) bool {
	return t.value == other.value
}

// IsZero reports whether the id is unset
func (t TransactionID) IsZero() bool {
	return t.value == ""
}

// SnapshotID represents a unique identifier for a state snapshot
type SnapshotID struct {
	value string
}

// NewSnapshotID generates a new SnapshotID
func NewSnapshotID() SnapshotID {
	return SnapshotID{value: newScopedID("snapshot")}
}

// NewSnapshotIDFromString creates a SnapshotID from an existing string
func NewSnapshotIDFromString(id string) (SnapshotID, error) {
	if id == "" {
		return SnapshotID{}, errors.New("snapshot ID cannot be empty")
	}
	return SnapshotID{value: id}, nil
}

// String returns the string representation
func (s SnapshotID) String() string {
	return s.value
}

// Equals checks if two SnapshotIDs are equal
func (s SnapshotID) Equals(other SnapshotID) bool {
	return s.value == other.value
}

// IsZero reports whether the id is unset
func (s SnapshotID) IsZero() bool {
	return s.value == ""
}

// RollbackPointID represents a unique identifier for a rollback point
type RollbackPointID struct {
	value string
}

// NewRollbackPointID generates a new RollbackPointID
func NewRollbackPointID() RollbackPointID {
	return RollbackPointID{value: newScopedID("rbp")}
}

// NewRollbackPointIDFromString creates a RollbackPointID from an existing string
func NewRollbackPointIDFromString(id string) (RollbackPointID, error) {
	if id == "" {
		return RollbackPointID{}, errors.New("rollback point ID cannot be empty")
	}
	return RollbackPointID{value: id}, nil
}

// String returns the string representation
func (r RollbackPointID) String() string {
	return r.value
}

// Equals checks if two RollbackPointIDs are equal
func (r RollbackPointID) Equals(other RollbackPointID) bool {
	return r.value == other.value
}

// IsZero reports whether the id is unset
func (r RollbackPointID) IsZero() bool {
	return r.value == ""
}

// StrategyID represents a unique identifier for a rollback strategy
type StrategyID struct {
	value string
}

// NewStrategyID generates a new StrategyID
func NewStrategyID() StrategyID {
	return StrategyID{value: newScopedID("strategy")}
}

// NewStrategyIDFromString creates a StrategyID from an existing string
func NewStrategyIDFromString(id string) (StrategyID, error) {
	if id == "" {
		return StrategyID{}, errors.New("strategy ID cannot be empty")
	}
	return StrategyID{value: id}, nil
}

// String returns the string representation
func (s StrategyID) String() string {
	return s.value
}

// Equals checks if two StrategyIDs are equal
func (s StrategyID) Equals(other StrategyID) bool {
	return s.value == other.value
}

// IsZero reports whether the id is unset
func (s StrategyID) IsZero() bool {
	return s.value == ""
}

// MigrationID represents a unique identifier for a migration run
type MigrationID struct {
	value string
}

// NewMigrationID generates a new MigrationID
func NewMigrationID() MigrationID {
	return MigrationID{value: newScopedID("migration")}
}

// NewMigrationIDFromString creates a MigrationID from an existing string
func NewMigrationIDFromString(id string) (MigrationID, error) {
	if id == "" {
		return MigrationID{}, errors.New("migration ID cannot be empty")
	}
	return MigrationID{value: id}, nil
}

// String returns the string representation
func (m MigrationID) String() string {
	return m.value
}

// Equals checks if two MigrationIDs are equal
func (m MigrationID) Equals(other MigrationID) bool {
	return m.value == other.value
}
