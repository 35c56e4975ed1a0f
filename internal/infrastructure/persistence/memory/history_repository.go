package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ductware/atomtx/internal/domain/model/transaction"
)

// HistoryRepository stores transaction results in an in-process slice,
// oldest first
type HistoryRepository struct {
	mu      sync.RWMutex
	results []*transaction.Result
}

// NewHistoryRepository creates an empty in-memory history repository
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// Append records a finished transaction's result
func (r *HistoryRepository) Append(ctx context.Context, result *transaction.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, result)
	return nil
}

// List returns all recorded results, oldest first. The returned slice is
// a copy; reads never mutate the stored history.
func (r *HistoryRepository) List(ctx context.Context) ([]*transaction.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*transaction.Result(nil), r.results...), nil
}

// ListByUser returns recorded results for one user id, oldest first
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string) ([]*transaction.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*transaction.Result
	for _, res := range r.results {
		if res.UserID == userID {
			result = append(result, res)
		}
	}
	return result, nil
}

// DeleteOlderThan removes results finished strictly before the cutoff
// and returns the removed count
func (r *HistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.results[:0]
	removed := 0
	for _, res := range r.results {
		if res.FinishedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, res)
	}
	// clear trailing pointers so removed results can be collected
	for i := len(kept); i < len(r.results); i++ {
		r.results[i] = nil
	}
	r.results = kept
	return removed, nil
}
