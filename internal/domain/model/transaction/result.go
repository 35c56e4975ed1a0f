package transaction

import (
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
)

// RollbackFailure records one operation whose rollback failed during a
// best-effort transaction rollback.
type RollbackFailure struct {
	OperationID string `json:"operation_id"`
	Message     string `json:"message"`
}

// Result is the durable, queryable record of a finished transaction.
// It is appended to history and never mutated afterward. Error holds
// the failure message; empty means the transaction succeeded.
type Result struct {
	TransactionID      model.TransactionID     `json:"-"`
	Status             model.TransactionStatus `json:"status"`
	Value              interface{}             `json:"value,omitempty"`
	Error              string                  `json:"error,omitempty"`
	RollbackPoints     []*rollback.Point       `json:"-"`
	ExecutedOperations []string                `json:"executed_operations"`
	RollbackFailures   []RollbackFailure       `json:"rollback_failures,omitempty"`
	UserID             string                  `json:"user_id,omitempty"`
	SessionID          string                  `json:"session_id,omitempty"`
	Duration           time.Duration           `json:"duration"`
	Metadata           map[string]interface{}  `json:"metadata,omitempty"`
	FinishedAt         time.Time               `json:"finished_at"`
}

// PointByID returns the recorded rollback point with the given id
func (r *Result) PointByID(id model.RollbackPointID) *rollback.Point {
	for _, p := range r.RollbackPoints {
		if p.ID().Equals(id) {
			return p
		}
	}
	return nil
}
