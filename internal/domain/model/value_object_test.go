package model

import (
	"testing"
)

// ==================== TransactionStatus Tests ====================

func TestTransactionStatus_String(t *testing.T) {
	tests := []struct {
		status   TransactionStatus
		expected string
	}{
		{StatusPending, "PENDING"},
		{StatusActive, "ACTIVE"},
		{StatusCommitted, "COMMITTED"},
		{StatusRolledBack, "ROLLED_BACK"},
		{StatusFailed, "FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.status.String() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.status.String())
			}
		})
	}
}

func TestTransactionStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status TransactionStatus
		valid  bool
	}{
		{"Pending is valid", StatusPending, true},
		{"Active is valid", StatusActive, true},
		{"Committed is valid", StatusCommitted, true},
		{"RolledBack is valid", StatusRolledBack, true},
		{"Failed is valid", StatusFailed, true},
		{"Invalid status", TransactionStatus("INVALID"), false},
		{"Empty status", TransactionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.status.IsValid() != tt.valid {
				t.Errorf("Expected IsValid() = %v for %s", tt.valid, tt.status)
			}
		})
	}
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   TransactionStatus
		terminal bool
	}{
		{"Pending is not terminal", StatusPending, false},
		{"Active is not terminal", StatusActive, false},
		{"Committed is terminal", StatusCommitted, true},
		{"RolledBack is terminal", StatusRolledBack, true},
		{"Failed is terminal", StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.status.IsTerminal() != tt.terminal {
				t.Errorf("Expected IsTerminal() = %v for %s", tt.terminal, tt.status)
			}
		})
	}
}

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name       string
		from       TransactionStatus
		to         TransactionStatus
		canTransit bool
	}{
		// Valid transitions
		{"Pending to Active", StatusPending, StatusActive, true},
		{"Pending to RolledBack", StatusPending, StatusRolledBack, true},
		{"Pending to Failed", StatusPending, StatusFailed, true},
		{"Active to Committed", StatusActive, StatusCommitted, true},
		{"Active to RolledBack", StatusActive, StatusRolledBack, true},
		{"Active to Failed", StatusActive, StatusFailed, true},
		{"Failed to RolledBack", StatusFailed, StatusRolledBack, true},

		// Invalid transitions
		{"Pending to Committed", StatusPending, StatusCommitted, false},
		{"Committed to anything", StatusCommitted, StatusRolledBack, false},
		{"Committed to Active", StatusCommitted, StatusActive, false},
		{"RolledBack to Active", StatusRolledBack, StatusActive, false},
		{"RolledBack to Committed", StatusRolledBack, StatusCommitted, false},
		{"Failed to Committed", StatusFailed, StatusCommitted, false},
		{"Failed to Active", StatusFailed, StatusActive, false},
		{"Unknown status", TransactionStatus("INVALID"), StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.from.CanTransitionTo(tt.to)
			if result != tt.canTransit {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v",
					tt.from, tt.to, result, tt.canTransit)
			}
		})
	}
}

// ==================== SnapshotType Tests ====================

func TestSnapshotType_IsValid(t *testing.T) {
	tests := []struct {
		name         string
		snapshotType SnapshotType
		valid        bool
	}{
		{"Full is valid", SnapshotTypeFull, true},
		{"Incremental is valid", SnapshotTypeIncremental, true},
		{"Invalid type", SnapshotType("differential"), false},
		{"Empty type", SnapshotType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.snapshotType.IsValid() != tt.valid {
				t.Errorf("Expected IsValid() = %v for %s", tt.valid, tt.snapshotType)
			}
		})
	}
}

// ==================== RollbackPointType Tests ====================

func TestRollbackPointType_String(t *testing.T) {
	tests := []struct {
		pointType RollbackPointType
		expected  string
	}{
		{RollbackPointTypeCheckpoint, "CHECKPOINT"},
		{RollbackPointTypeManual, "MANUAL"},
		{RollbackPointTypeMigration, "MIGRATION"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.pointType.String() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.pointType.String())
			}
		})
	}
}

func TestRollbackPointType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		pointType RollbackPointType
		valid     bool
	}{
		{"Checkpoint is valid", RollbackPointTypeCheckpoint, true},
		{"Manual is valid", RollbackPointTypeManual, true},
		{"Migration is valid", RollbackPointTypeMigration, true},
		{"Invalid type", RollbackPointType("SAVEPOINT"), false},
		{"Empty type", RollbackPointType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.pointType.IsValid() != tt.valid {
				t.Errorf("Expected IsValid() = %v for %s", tt.valid, tt.pointType)
			}
		})
	}
}

// ==================== StrategyKind Tests ====================

func TestStrategyKind_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		kind  StrategyKind
		valid bool
	}{
		{"Sequential is valid", StrategySequential, true},
		{"Parallel is valid", StrategyParallel, true},
		{"Invalid kind", StrategyKind("staged"), false},
		{"Empty kind", StrategyKind(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind.IsValid() != tt.valid {
				t.Errorf("Expected IsValid() = %v for %s", tt.valid, tt.kind)
			}
		})
	}
}

// ==================== IsolationLevel Tests ====================

func TestIsolationLevel_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		level IsolationLevel
		valid bool
	}{
		{"ReadUncommitted is valid", IsolationReadUncommitted, true},
		{"ReadCommitted is valid", IsolationReadCommitted, true},
		{"RepeatableRead is valid", IsolationRepeatableRead, true},
		{"Serializable is valid", IsolationSerializable, true},
		{"Invalid level", IsolationLevel("SNAPSHOT"), false},
		{"Empty level", IsolationLevel(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.level.IsValid() != tt.valid {
				t.Errorf("Expected IsValid() = %v for %s", tt.valid, tt.level)
			}
		})
	}
}
