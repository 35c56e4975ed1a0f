// Package operation defines the unit of reversible work supplied by
// callers of the transaction engine.
package operation

import (
	"context"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
)

// Descriptor carries an operation's identity and informational metadata.
// Dependencies are never used to reorder execution; callers must submit
// operations in dependency order. Timeout and RetryCount are metadata:
// the engine estimates rollback duration from Timeout (half of it per
// undo step) and grades risk from Priority, but enforces neither a
// deadline nor automatic retries.
type Descriptor struct {
	ID           string
	Name         string
	Description  string
	Dependencies []string
	Timeout      time.Duration
	RetryCount   int
	Priority     int
}

// AtomicOperation is a reversible unit of work. Rollback must be safe to
// call even if Execute partially failed or never ran; "nothing to undo"
// is a successful no-op, not an error.
type AtomicOperation interface {
	// Descriptor returns the operation's identity and metadata
	Descriptor() Descriptor

	// Execute performs the operation and returns its result
	Execute(ctx context.Context, txCtx *model.TransactionContext) (interface{}, error)

	// Rollback undoes whatever Execute changed
	Rollback(ctx context.Context, txCtx *model.TransactionContext) error

	// Validate checks preconditions without side effects
	Validate(ctx context.Context, txCtx *model.TransactionContext) model.ValidationResult
}
