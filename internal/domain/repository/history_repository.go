package repository

import (
	"context"
	"time"

	"github.com/ductware/atomtx/internal/domain/model/transaction"
)

// HistoryRepository manages the append-only archive of finished
// transactions. Records are never mutated after Append.
type HistoryRepository interface {
	// Append archives a finished transaction's result
	Append(ctx context.Context, result *transaction.Result) error

	// List returns all archived results, oldest first
	List(ctx context.Context) ([]*transaction.Result, error)

	// ListByUser returns the archived results for one acting user
	ListByUser(ctx context.Context, userID string) ([]*transaction.Result, error)

	// DeleteOlderThan purges results finished strictly before the cutoff
	// and returns the removed count
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
