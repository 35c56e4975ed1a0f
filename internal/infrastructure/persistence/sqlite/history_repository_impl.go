package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/model/transaction"
	"github.com/ductware/atomtx/internal/domain/repository"
)

// HistoryRepositoryImpl implements repository.HistoryRepository with SQLite
type HistoryRepositoryImpl struct {
	db *sql.DB
}

// NewHistoryRepository creates a new SQLite-based history repository
func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &HistoryRepositoryImpl{db: db}
}

// pointRecord is the stored form of a rollback point
type pointRecord struct {
	ID               string                 `json:"id"`
	TransactionID    string                 `json:"transaction_id"`
	Type             string                 `json:"type"`
	Timestamp        time.Time              `json:"timestamp"`
	Description      string                 `json:"description"`
	Snapshots        map[string]string      `json:"snapshots"`
	Dependencies     []string               `json:"dependencies,omitempty"`
	ValidationChecks []string               `json:"validation_checks,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Append records a finished transaction's result
func (r *HistoryRepositoryImpl) Append(ctx context.Context, result *transaction.Result) error {
	valueJSON, err := marshalNullable(result.Value)
	if err != nil {
		return fmt.Errorf("marshal result value: %w", err)
	}

	executedJSON, err := json.Marshal(result.ExecutedOperations)
	if err != nil {
		return fmt.Errorf("marshal executed operations: %w", err)
	}

	failuresJSON, err := marshalNullable(result.RollbackFailures)
	if err != nil {
		return fmt.Errorf("marshal rollback failures: %w", err)
	}

	pointsJSON, err := encodePoints(result.RollbackPoints)
	if err != nil {
		return fmt.Errorf("marshal rollback points: %w", err)
	}

	metadataJSON, err := marshalNullable(result.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO transaction_history (
			transaction_id, status, value_json, error, executed_operations,
			rollback_failures, rollback_points, user_id, session_id,
			duration_ns, metadata, finished_at, finished_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		result.TransactionID.String(),
		result.Status.String(),
		valueJSON,
		result.Error,
		string(executedJSON),
		failuresJSON,
		pointsJSON,
		result.UserID,
		result.SessionID,
		result.Duration.Nanoseconds(),
		metadataJSON,
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction history: %w", err)
	}
	return nil
}

// List returns all recorded results, oldest first
func (r *HistoryRepositoryImpl) List(ctx context.Context) ([]*transaction.Result, error) {
	return r.query(ctx, selectColumns+` FROM transaction_history ORDER BY finished_unix ASC`)
}

// ListByUser returns recorded results for one user id, oldest first
func (r *HistoryRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]*transaction.Result, error) {
	return r.query(ctx,
		selectColumns+` FROM transaction_history WHERE user_id = ? ORDER BY finished_unix ASC`, userID)
}

// DeleteOlderThan removes results finished strictly before the cutoff
// and returns the removed count
func (r *HistoryRepositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM transaction_history WHERE finished_unix < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete transaction history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rows), nil
}

const selectColumns = `
	SELECT transaction_id, status, value_json, error, executed_operations,
		rollback_failures, rollback_points, user_id, session_id,
		duration_ns, metadata, finished_at`

func (r *HistoryRepositoryImpl) query(ctx context.Context, query string, args ...interface{}) ([]*transaction.Result, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transaction history: %w", err)
	}
	defer rows.Close()

	var results []*transaction.Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction history: %w", err)
	}
	return results, nil
}

func scanResult(rows *sql.Rows) (*transaction.Result, error) {
	var (
		txnIDStr     string
		status       string
		valueJSON    sql.NullString
		errText      string
		executedJSON string
		failuresJSON sql.NullString
		pointsJSON   sql.NullString
		userID       string
		sessionID    string
		durationNS   int64
		metadataJSON sql.NullString
		finishedAt   string
	)

	if err := rows.Scan(&txnIDStr, &status, &valueJSON, &errText, &executedJSON,
		&failuresJSON, &pointsJSON, &userID, &sessionID,
		&durationNS, &metadataJSON, &finishedAt); err != nil {
		return nil, fmt.Errorf("scan transaction history: %w", err)
	}

	txnID, err := model.NewTransactionIDFromString(txnIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", txnIDStr, err)
	}

	finishedAtTime, err := time.Parse(time.RFC3339Nano, finishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}

	var value interface{}
	if valueJSON.Valid && valueJSON.String != "" {
		if err := json.Unmarshal([]byte(valueJSON.String), &value); err != nil {
			return nil, fmt.Errorf("unmarshal result value: %w", err)
		}
	}

	var executed []string
	if err := json.Unmarshal([]byte(executedJSON), &executed); err != nil {
		return nil, fmt.Errorf("unmarshal executed operations: %w", err)
	}
	if executed == nil {
		executed = []string{}
	}

	var failures []transaction.RollbackFailure
	if failuresJSON.Valid && failuresJSON.String != "" {
		if err := json.Unmarshal([]byte(failuresJSON.String), &failures); err != nil {
			return nil, fmt.Errorf("unmarshal rollback failures: %w", err)
		}
	}

	points, err := decodePoints(pointsJSON)
	if err != nil {
		return nil, err
	}

	var metadata map[string]interface{}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &transaction.Result{
		TransactionID:      txnID,
		Status:             model.TransactionStatus(status),
		Value:              value,
		Error:              errText,
		RollbackPoints:     points,
		ExecutedOperations: executed,
		RollbackFailures:   failures,
		UserID:             userID,
		SessionID:          sessionID,
		Duration:           time.Duration(durationNS),
		Metadata:           metadata,
		FinishedAt:         finishedAtTime,
	}, nil
}

// encodePoints serializes rollback points; empty input stores NULL
func encodePoints(points []*rollback.Point) (sql.NullString, error) {
	if len(points) == 0 {
		return sql.NullString{}, nil
	}

	records := make([]pointRecord, 0, len(points))
	for _, p := range points {
		snapshots := make(map[string]string, len(p.Snapshots()))
		for name, snapID := range p.Snapshots() {
			snapshots[name] = snapID.String()
		}
		records = append(records, pointRecord{
			ID:               p.ID().String(),
			TransactionID:    p.TransactionID().String(),
			Type:             p.Type().String(),
			Timestamp:        p.Timestamp(),
			Description:      p.Description(),
			Snapshots:        snapshots,
			Dependencies:     p.Dependencies(),
			ValidationChecks: p.ValidationChecks(),
			Metadata:         p.Metadata(),
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodePoints rebuilds rollback points from their stored form
func decodePoints(stored sql.NullString) ([]*rollback.Point, error) {
	if !stored.Valid || stored.String == "" {
		return nil, nil
	}

	var records []pointRecord
	if err := json.Unmarshal([]byte(stored.String), &records); err != nil {
		return nil, fmt.Errorf("unmarshal rollback points: %w", err)
	}

	points := make([]*rollback.Point, 0, len(records))
	for _, rec := range records {
		pointID, err := model.NewRollbackPointIDFromString(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid rollback point id %q: %w", rec.ID, err)
		}
		txnID, err := model.NewTransactionIDFromString(rec.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction id %q: %w", rec.TransactionID, err)
		}

		snapshots := make(map[string]model.SnapshotID, len(rec.Snapshots))
		for name, snapIDStr := range rec.Snapshots {
			snapID, err := model.NewSnapshotIDFromString(snapIDStr)
			if err != nil {
				return nil, fmt.Errorf("invalid snapshot id %q: %w", snapIDStr, err)
			}
			snapshots[name] = snapID
		}

		points = append(points, rollback.Reconstruct(
			pointID, txnID, model.RollbackPointType(rec.Type), rec.Timestamp,
			rec.Description, snapshots, rec.Dependencies, rec.ValidationChecks, rec.Metadata))
	}
	return points, nil
}

// marshalNullable serializes a value to JSON, storing NULL for nil
func marshalNullable(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	switch val := v.(type) {
	case []transaction.RollbackFailure:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]interface{}:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
