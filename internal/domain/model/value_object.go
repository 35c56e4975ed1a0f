package model

// TransactionStatus represents the current status of a transaction
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusActive     TransactionStatus = "ACTIVE"
	StatusCommitted  TransactionStatus = "COMMITTED"
	StatusRolledBack TransactionStatus = "ROLLED_BACK"
	StatusFailed     TransactionStatus = "FAILED"
)

// String returns the string representation
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid validates the status
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCommitted, StatusRolledBack, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status accepts no further operations.
// A FAILED transaction is terminal for new work but may still transition
// to ROLLED_BACK when the caller runs the rollback it is responsible for.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCommitted, StatusRolledBack, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	validTransitions := map[TransactionStatus][]TransactionStatus{
		StatusPending:    {StatusActive, StatusRolledBack, StatusFailed},
		StatusActive:     {StatusCommitted, StatusRolledBack, StatusFailed},
		StatusFailed:     {StatusRolledBack},
		StatusCommitted:  {},
		StatusRolledBack: {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == next {
			return true
		}
	}
	return false
}

// SnapshotType represents how a snapshot was captured
type SnapshotType string

const (
	SnapshotTypeFull        SnapshotType = "full"
	SnapshotTypeIncremental SnapshotType = "incremental"
)

// String returns the string representation
func (t SnapshotType) String() string {
	return string(t)
}

// IsValid validates the snapshot type
func (t SnapshotType) IsValid() bool {
	switch t {
	case SnapshotTypeFull, SnapshotTypeIncremental:
		return true
	default:
		return false
	}
}

// RollbackPointType represents the kind of rollback point
type RollbackPointType string

const (
	RollbackPointTypeCheckpoint RollbackPointType = "CHECKPOINT"
	RollbackPointTypeManual     RollbackPointType = "MANUAL"
	RollbackPointTypeMigration  RollbackPointType = "MIGRATION"
)

// String returns the string representation
func (t RollbackPointType) String() string {
	return string(t)
}

// IsValid validates the rollback point type
func (t RollbackPointType) IsValid() bool {
	switch t {
	case RollbackPointTypeCheckpoint, RollbackPointTypeManual, RollbackPointTypeMigration:
		return true
	default:
		return false
	}
}

// StrategyKind represents how a rollback strategy executes its steps
type StrategyKind string

const (
	StrategySequential StrategyKind = "sequential"
	StrategyParallel   StrategyKind = "parallel"
)

// String returns the string representation
func (k StrategyKind) String() string {
	return string(k)
}

// IsValid validates the strategy kind
func (k StrategyKind) IsValid() bool {
	switch k {
	case StrategySequential, StrategyParallel:
		return true
	default:
		return false
	}
}

// RiskLevel represents a qualitative data-loss risk grade
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// String returns the string representation
func (r RiskLevel) String() string {
	return string(r)
}

// IsolationLevel labels how concurrent transactions should observe each
// other's uncommitted state. The label is recorded and logged but not
// enforced; no locking or snapshot isolation is implemented behind it.
type IsolationLevel string

const (
	IsolationReadUncommitted IsolationLevel = "READ_UNCOMMITTED"
	IsolationReadCommitted   IsolationLevel = "READ_COMMITTED"
	IsolationRepeatableRead  IsolationLevel = "REPEATABLE_READ"
	IsolationSerializable    IsolationLevel = "SERIALIZABLE"
)

// String returns the string representation
func (l IsolationLevel) String() string {
	return string(l)
}

// IsValid validates the isolation level
func (l IsolationLevel) IsValid() bool {
	switch l {
	case IsolationReadUncommitted, IsolationReadCommitted, IsolationRepeatableRead, IsolationSerializable:
		return true
	default:
		return false
	}
}
