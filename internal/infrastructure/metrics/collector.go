// Package metrics counts engine events and persists them as JSON so
// repeated runs accumulate totals.
package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ductware/atomtx/internal/infrastructure/persistence/file"
)

// SchemaVersion guards metrics.json compatibility
const SchemaVersion = 1

// Collector counts engine events. It implements the engine's metrics
// recorder port; all counters only ever increase in memory, and Save
// merges monotonically with whatever is already on disk.
type Collector struct {
	mu sync.RWMutex

	TransactionsBegun      int64  `json:"transactions_begun"`
	TransactionsCommitted  int64  `json:"transactions_committed"`
	TransactionsRolledBack int64  `json:"transactions_rolled_back"`
	TransactionsFailed     int64  `json:"transactions_failed"`
	SnapshotsCreated       int64  `json:"snapshots_created"`
	SnapshotsRestored      int64  `json:"snapshots_restored"`
	CorruptionDetected     int64  `json:"corruption_detected"`
	CheckpointsCreated     int64  `json:"checkpoints_created"`
	RollbackStepFailures   int64  `json:"rollback_step_failures"`
	LastUpdate             string `json:"last_update"`
	Schema                 int    `json:"schema_version"`
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{Schema: SchemaVersion}
}

// RecordTransactionBegun counts a started transaction
func (c *Collector) RecordTransactionBegun() { c.add(&c.TransactionsBegun, 1) }

// RecordTransactionCommitted counts a committed transaction
func (c *Collector) RecordTransactionCommitted() { c.add(&c.TransactionsCommitted, 1) }

// RecordTransactionRolledBack counts a rolled-back transaction
func (c *Collector) RecordTransactionRolledBack() { c.add(&c.TransactionsRolledBack, 1) }

// RecordTransactionFailed counts a failed transaction
func (c *Collector) RecordTransactionFailed() { c.add(&c.TransactionsFailed, 1) }

// RecordSnapshotCreated counts a captured snapshot
func (c *Collector) RecordSnapshotCreated() { c.add(&c.SnapshotsCreated, 1) }

// RecordSnapshotRestored counts a restored snapshot
func (c *Collector) RecordSnapshotRestored() { c.add(&c.SnapshotsRestored, 1) }

// RecordCorruptionDetected counts a checksum validation failure
func (c *Collector) RecordCorruptionDetected() { c.add(&c.CorruptionDetected, 1) }

// RecordCheckpointCreated counts a created rollback point
func (c *Collector) RecordCheckpointCreated() { c.add(&c.CheckpointsCreated, 1) }

// RecordRollbackStepFailures counts operations whose rollback failed
func (c *Collector) RecordRollbackStepFailures(n int) { c.add(&c.RollbackStepFailures, int64(n)) }

func (c *Collector) add(counter *int64, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*counter += delta
	c.LastUpdate = time.Now().UTC().Format(time.RFC3339)
}

// Snapshot returns a read-only copy of the current counters
func (c *Collector) Snapshot() Collector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Collector{
		TransactionsBegun:      c.TransactionsBegun,
		TransactionsCommitted:  c.TransactionsCommitted,
		TransactionsRolledBack: c.TransactionsRolledBack,
		TransactionsFailed:     c.TransactionsFailed,
		SnapshotsCreated:       c.SnapshotsCreated,
		SnapshotsRestored:      c.SnapshotsRestored,
		CorruptionDetected:     c.CorruptionDetected,
		CheckpointsCreated:     c.CheckpointsCreated,
		RollbackStepFailures:   c.RollbackStepFailures,
		LastUpdate:             c.LastUpdate,
		Schema:                 c.Schema,
	}
}

// Merge combines two collectors with monotonic increase
func (c *Collector) Merge(other *Collector) *Collector {
	snap := c.Snapshot()
	if other == nil {
		return &snap
	}
	return &Collector{
		TransactionsBegun:      snap.TransactionsBegun + other.TransactionsBegun,
		TransactionsCommitted:  snap.TransactionsCommitted + other.TransactionsCommitted,
		TransactionsRolledBack: snap.TransactionsRolledBack + other.TransactionsRolledBack,
		TransactionsFailed:     snap.TransactionsFailed + other.TransactionsFailed,
		SnapshotsCreated:       snap.SnapshotsCreated + other.SnapshotsCreated,
		SnapshotsRestored:      snap.SnapshotsRestored + other.SnapshotsRestored,
		CorruptionDetected:     snap.CorruptionDetected + other.CorruptionDetected,
		CheckpointsCreated:     snap.CheckpointsCreated + other.CheckpointsCreated,
		RollbackStepFailures:   snap.RollbackStepFailures + other.RollbackStepFailures,
		Schema:                 SchemaVersion,
		LastUpdate:             time.Now().UTC().Format(time.RFC3339),
	}
}

// SuccessRate returns the committed share of finished transactions as a
// percentage
func (c *Collector) SuccessRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.TransactionsCommitted + c.TransactionsRolledBack + c.TransactionsFailed
	if total == 0 {
		return 0.0
	}
	return float64(c.TransactionsCommitted) / float64(total) * 100.0
}

// Load reads a collector from disk, returning a fresh one when the file
// does not exist
func Load(fs afero.Fs, path string) (*Collector, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Collector{
				Schema:     SchemaVersion,
				LastUpdate: time.Now().UTC().Format(time.RFC3339),
			}, nil
		}
		return nil, fmt.Errorf("read metrics file: %w", err)
	}

	var c Collector
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}

	if c.Schema == 0 {
		c.Schema = SchemaVersion
	} else if c.Schema > SchemaVersion {
		return nil, fmt.Errorf("unsupported metrics schema version %d (max supported: %d)",
			c.Schema, SchemaVersion)
	}
	return &c, nil
}

// Save merges the in-memory counters into the persisted file so totals
// only ever grow across runs
func (c *Collector) Save(fs afero.Fs, path string) error {
	disk, err := Load(fs, path)
	if err != nil {
		return err
	}

	merged := c.Merge(disk)
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	if err := file.WriteFileAtomic(fs, path, data); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
