package output

// MetricsRecorder receives engine counters. Implementations must be safe
// for concurrent use and must never fail the calling operation.
type MetricsRecorder interface {
	// RecordTransactionBegun counts a transaction entering the active set
	RecordTransactionBegun()

	// RecordTransactionCommitted counts a COMMITTED outcome
	RecordTransactionCommitted()

	// RecordTransactionRolledBack counts a ROLLED_BACK outcome
	RecordTransactionRolledBack()

	// RecordTransactionFailed counts a FAILED outcome
	RecordTransactionFailed()

	// RecordSnapshotCreated counts a stored snapshot
	RecordSnapshotCreated()

	// RecordSnapshotRestored counts a successful restore
	RecordSnapshotRestored()

	// RecordCorruptionDetected counts a checksum validation failure
	RecordCorruptionDetected()

	// RecordCheckpointCreated counts a rollback point creation
	RecordCheckpointCreated()

	// RecordRollbackStepFailures counts operations whose rollback failed
	// during a best-effort transaction rollback
	RecordRollbackStepFailures(n int)
}

// NopMetricsRecorder discards all counters.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) RecordTransactionBegun()        {}
func (NopMetricsRecorder) RecordTransactionCommitted()    {}
func (NopMetricsRecorder) RecordTransactionRolledBack()   {}
func (NopMetricsRecorder) RecordTransactionFailed()       {}
func (NopMetricsRecorder) RecordSnapshotCreated()         {}
func (NopMetricsRecorder) RecordSnapshotRestored()        {}
func (NopMetricsRecorder) RecordCorruptionDetected()      {}
func (NopMetricsRecorder) RecordCheckpointCreated()       {}
func (NopMetricsRecorder) RecordRollbackStepFailures(int) {}
