package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for id-based lookups and contract violations.
// Not-found conditions are always distinguishable from corruption.
var (
	// ErrOperationValidationFailed is returned when an operation fails
	// pre-execution validation; nothing has executed and no rollback runs.
	ErrOperationValidationFailed = errors.New("operation validation failed")

	// ErrSnapshotNotFound is returned when a snapshot id resolves to nothing.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupted is returned when a snapshot's stored checksum
	// does not match its recomputed payload hash.
	ErrSnapshotCorrupted = errors.New("snapshot corrupted")

	// ErrCheckpointNotFound is returned when a checkpoint id is not among
	// a transaction's rollback points.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrRollbackPointNotFound is returned when a rollback point id exists
	// neither in any active transaction nor in history.
	ErrRollbackPointNotFound = errors.New("rollback point not found")

	// ErrTransactionNotFound is returned when a transaction id is not in
	// the active set.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransactionState is returned when an operation is invoked
	// on a transaction whose status forbids it.
	ErrInvalidTransactionState = errors.New("invalid transaction state")

	// ErrStrategyNotFound is returned when a rollback strategy id is unknown.
	ErrStrategyNotFound = errors.New("rollback strategy not found")

	// ErrArchiveNotConfigured is returned by archive operations when no
	// archive gateway is wired.
	ErrArchiveNotConfigured = errors.New("snapshot archive not configured")
)

// TransactionError wraps a failure with the transaction it occurred in.
type TransactionError struct {
	// Transaction ID where error occurred
	TxnID TransactionID

	// Operation that failed
	Operation string

	// Underlying error
	Err error

	// Whether the error is recoverable
	Recoverable bool
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	recovery := "unrecoverable"
	if e.Recoverable {
		recovery = "recoverable"
	}
	return fmt.Sprintf("transaction %s: %s failed (%s): %v",
		e.TxnID.String(), e.Operation, recovery, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransactionError) Unwrap() error {
	return e.Err
}
