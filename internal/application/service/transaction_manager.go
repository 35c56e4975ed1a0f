package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ductware/atomtx/internal/app"
	"github.com/ductware/atomtx/internal/application/port/output"
	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/migration"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
	"github.com/ductware/atomtx/internal/domain/model/transaction"
	"github.com/ductware/atomtx/internal/domain/repository"
)

// BeginOptions carries caller-supplied identity and settings for a new
// transaction. The engine never fabricates an acting user; UserID comes
// from the caller's auth context. An empty SessionID gets a generated one.
type BeginOptions struct {
	UserID         string
	SessionID      string
	Metadata       map[string]interface{}
	IsolationLevel model.IsolationLevel
}

// ExecOptions extends BeginOptions for the execute entry points
type ExecOptions struct {
	BeginOptions

	// CreateCheckpoint takes a pre-execution checkpoint so the caller can
	// later restore to the state just before the operations ran
	CreateCheckpoint bool
}

// TransactionManager is the orchestration entry point: it owns the
// active-transaction set, drives operations through transactions, and
// records every outcome in history.
type TransactionManager interface {
	// Begin creates a transaction in PENDING and registers it as active
	Begin(ctx context.Context, opts BeginOptions) (*transaction.Transaction, error)

	// ExecuteAtomicOperation validates and runs a single operation inside
	// a fresh transaction. Validation failure aborts before any side
	// effect. An execution error rolls the transaction back, records a
	// ROLLED_BACK result, and is re-raised; a result is recorded in
	// history in every case.
	ExecuteAtomicOperation(ctx context.Context, op operation.AtomicOperation, opts ExecOptions) (*transaction.Result, error)

	// ExecuteAtomicOperations validates every operation up front, then
	// runs them strictly in order. An operation joins the transaction's
	// rollback set only once it has executed, so a mid-batch failure
	// undoes completed predecessors and never the failing operation.
	ExecuteAtomicOperations(ctx context.Context, ops []operation.AtomicOperation, opts ExecOptions) (*transaction.Result, error)

	// ExecuteMigration runs steps in order, each inside its own
	// transaction behind a "Before step" checkpoint. Failures are
	// reported through the result, never through a returned error.
	ExecuteMigration(ctx context.Context, steps []*migration.Step, opts BeginOptions) *migration.Result

	// CreateRollbackPoint delegates to the named active transaction
	CreateRollbackPoint(ctx context.Context, txnID model.TransactionID, pointType model.RollbackPointType, description string) (*rollback.Point, error)

	// ExecuteRollback restores the snapshots behind a rollback point,
	// searching active transactions first and history second. The bool is
	// false when restoration fails; the error is reserved for an id that
	// exists nowhere.
	ExecuteRollback(ctx context.Context, pointID model.RollbackPointID) (bool, error)

	// TransactionStatus reports the status of an active or finished
	// transaction
	TransactionStatus(ctx context.Context, id model.TransactionID) (model.TransactionStatus, error)

	// ActiveTransactions lists in-flight transactions, oldest first
	ActiveTransactions() []*transaction.Transaction

	// CancelTransaction forces a rollback of an active transaction and
	// removes it, reporting whether it existed
	CancelTransaction(ctx context.Context, id model.TransactionID) (bool, error)

	// TransactionHistory returns recorded results, optionally filtered by
	// user id
	TransactionHistory(ctx context.Context, userID string) ([]*transaction.Result, error)

	// CleanupTransactions purges history entries older than the given age
	// and returns how many were removed
	CleanupTransactions(ctx context.Context, olderThan time.Duration) (int, error)
}

// TransactionManagerImpl implements TransactionManager
type TransactionManagerImpl struct {
	mu     sync.RWMutex
	active map[model.TransactionID]*transaction.Transaction

	state     StateManager
	rollbacks RollbackManager
	history   repository.HistoryRepository
	metrics   output.MetricsRecorder
	logger    app.Logger
}

// NewTransactionManager creates a transaction manager
func NewTransactionManager(
	state StateManager,
	rollbacks RollbackManager,
	history repository.HistoryRepository,
	metrics output.MetricsRecorder,
	logger app.Logger,
) *TransactionManagerImpl {
	if metrics == nil {
		metrics = output.NopMetricsRecorder{}
	}
	if logger == nil {
		logger = app.GetLogger()
	}
	return &TransactionManagerImpl{
		active:    make(map[model.TransactionID]*transaction.Transaction),
		state:     state,
		rollbacks: rollbacks,
		history:   history,
		metrics:   metrics,
		logger:    logger,
	}
}

// Begin creates and registers a transaction in PENDING
func (m *TransactionManagerImpl) Begin(ctx context.Context, opts BeginOptions) (*transaction.Transaction, error) {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	txCtx := model.NewTransactionContext(model.NewTransactionID(), opts.UserID, sessionID, opts.Metadata)
	txn := transaction.New(txCtx, m.state, func(point *rollback.Point) {
		m.rollbacks.RegisterRollbackPoint(point)
		m.metrics.RecordCheckpointCreated()
	})

	if opts.IsolationLevel != "" {
		if err := txn.SetIsolationLevel(opts.IsolationLevel); err != nil {
			return nil, err
		}
		// recorded on the transaction; concurrent transactions are not
		// actually serialized against each other
		m.logger.Debug("Transaction %s isolation=%s (recorded, not enforced)", txn.ID().String(), opts.IsolationLevel)
	}

	m.mu.Lock()
	m.active[txn.ID()] = txn
	m.mu.Unlock()

	m.metrics.RecordTransactionBegun()
	m.logger.Info("Started transaction %s user=%s session=%s", txn.ID().String(), opts.UserID, sessionID)
	return txn, nil
}

// ExecuteAtomicOperation runs one operation in a fresh transaction.
// The operation is added to the transaction before executing, so on
// failure its own rollback participates in the undo.
func (m *TransactionManagerImpl) ExecuteAtomicOperation(ctx context.Context, op operation.AtomicOperation, opts ExecOptions) (*transaction.Result, error) {
	txn, err := m.Begin(ctx, opts.BeginOptions)
	if err != nil {
		return nil, err
	}

	if err := m.validateAll(ctx, txn, op); err != nil {
		_ = txn.MarkFailed(err)
		return m.record(ctx, txn, nil, err.Error(), nil), err
	}

	if opts.CreateCheckpoint {
		if _, err := txn.CreateCheckpoint(ctx, "Before operation: "+op.Descriptor().Name); err != nil {
			_ = txn.MarkFailed(err)
			return m.record(ctx, txn, nil, err.Error(), nil), err
		}
	}

	if err := txn.AddOperation(op); err != nil {
		_ = txn.MarkFailed(err)
		return m.record(ctx, txn, nil, err.Error(), nil), err
	}

	value, execErr := txn.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return op.Execute(ctx, txn.Context())
	})
	if execErr != nil {
		m.rollbackAfterFailure(ctx, txn)
		res := m.record(ctx, txn, nil, execErr.Error(), nil)
		return res, &model.TransactionError{
			TxnID:       txn.ID(),
			Operation:   op.Descriptor().ID,
			Err:         execErr,
			Recoverable: true,
		}
	}

	if err := txn.Commit(); err != nil {
		return m.record(ctx, txn, value, err.Error(), nil), err
	}
	return m.record(ctx, txn, value, "", []string{op.Descriptor().ID}), nil
}

// ExecuteAtomicOperations runs a batch strictly in order after
// validating every operation up front.
func (m *TransactionManagerImpl) ExecuteAtomicOperations(ctx context.Context, ops []operation.AtomicOperation, opts ExecOptions) (*transaction.Result, error) {
	txn, err := m.Begin(ctx, opts.BeginOptions)
	if err != nil {
		return nil, err
	}

	if err := m.validateAll(ctx, txn, ops...); err != nil {
		_ = txn.MarkFailed(err)
		return m.record(ctx, txn, nil, err.Error(), nil), err
	}

	if opts.CreateCheckpoint {
		if _, err := txn.CreateCheckpoint(ctx, fmt.Sprintf("Before %d operations", len(ops))); err != nil {
			_ = txn.MarkFailed(err)
			return m.record(ctx, txn, nil, err.Error(), nil), err
		}
	}

	values, executed, failedOp, execErr := m.runBatch(ctx, txn, ops)
	if execErr != nil {
		m.rollbackAfterFailure(ctx, txn)
		res := m.record(ctx, txn, nil, execErr.Error(), executed)
		return res, &model.TransactionError{
			TxnID:       txn.ID(),
			Operation:   failedOp,
			Err:         execErr,
			Recoverable: true,
		}
	}

	if err := txn.Commit(); err != nil {
		return m.record(ctx, txn, values, err.Error(), executed), err
	}
	return m.record(ctx, txn, values, "", executed), nil
}

// ExecuteMigration runs migration steps in order, each in a dedicated
// transaction behind a "Before step" checkpoint. A failing step with
// phase scope also undoes every previously completed step, in reverse
// completion order, using the operations' rollbacks and the steps'
// recorded rollback points.
func (m *TransactionManagerImpl) ExecuteMigration(ctx context.Context, steps []*migration.Step, opts BeginOptions) *migration.Result {
	start := time.Now()
	res := &migration.Result{
		MigrationID:    model.NewMigrationID(),
		CompletedSteps: []string{},
		RollbackPoints: []*rollback.Point{},
		Metadata:       map[string]interface{}{},
	}
	defer func() { res.Duration = time.Since(start) }()

	m.logger.Info("Started migration %s steps=%d", res.MigrationID.String(), len(steps))

	var completed []completedStep
	done := make(map[string]bool, len(steps))

	fail := func(step *migration.Step, cause error) {
		res.FailedStep = step.ID()
		res.Error = cause.Error()
		m.logger.Error("Migration %s failed at step %s: %v", res.MigrationID.String(), step.ID(), cause)
		if step.RollbackStrategy() == migration.RollbackStrategyPhase {
			m.phaseRollback(ctx, res, completed)
		}
	}

	for _, step := range steps {
		if unmet := unmetPrerequisites(step, done); len(unmet) > 0 {
			fail(step, fmt.Errorf("unmet prerequisites: %s", strings.Join(unmet, ", ")))
			return res
		}

		txn, err := m.Begin(ctx, opts)
		if err != nil {
			fail(step, err)
			return res
		}

		point, err := txn.CreateCheckpoint(ctx, "Before step: "+step.Name())
		if err != nil {
			_ = txn.MarkFailed(err)
			m.record(ctx, txn, nil, err.Error(), nil)
			fail(step, err)
			return res
		}
		res.RollbackPoints = append(res.RollbackPoints, point)

		ops := step.Operations()
		if err := m.validateAll(ctx, txn, ops...); err != nil {
			_ = txn.MarkFailed(err)
			m.record(ctx, txn, nil, err.Error(), nil)
			fail(step, err)
			return res
		}

		_, executed, _, execErr := m.runBatch(ctx, txn, ops)
		if execErr != nil {
			m.rollbackAfterFailure(ctx, txn)
			m.record(ctx, txn, nil, execErr.Error(), executed)
			fail(step, execErr)
			return res
		}

		if err := txn.Commit(); err != nil {
			m.record(ctx, txn, nil, err.Error(), executed)
			fail(step, err)
			return res
		}
		m.record(ctx, txn, nil, "", executed)

		done[step.ID()] = true
		res.CompletedSteps = append(res.CompletedSteps, step.ID())
		completed = append(completed, completedStep{step: step, txn: txn, point: point})
		m.logger.Info("Migration %s completed step %s", res.MigrationID.String(), step.ID())
	}

	res.Success = true
	m.logger.Info("Migration %s completed steps=%d duration=%s", res.MigrationID.String(), len(res.CompletedSteps), time.Since(start))
	return res
}

// CreateRollbackPoint delegates to the named active transaction
func (m *TransactionManagerImpl) CreateRollbackPoint(ctx context.Context, txnID model.TransactionID, pointType model.RollbackPointType, description string) (*rollback.Point, error) {
	m.mu.RLock()
	txn, ok := m.active[txnID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrTransactionNotFound, txnID.String())
	}
	return txn.CreatePoint(ctx, pointType, description)
}

// ExecuteRollback restores the snapshots behind a rollback point
func (m *TransactionManagerImpl) ExecuteRollback(ctx context.Context, pointID model.RollbackPointID) (bool, error) {
	point := m.findRollbackPoint(ctx, pointID)
	if point == nil {
		return false, fmt.Errorf("%w: %s", model.ErrRollbackPointNotFound, pointID.String())
	}

	if err := m.restorePointSnapshots(ctx, point); err != nil {
		m.logger.Error("Rollback to point %s failed: %v", pointID.String(), err)
		return false, nil
	}
	m.logger.Info("Rolled back to point %s", pointID.String())
	return true, nil
}

// TransactionStatus reports the status of an active or recorded
// transaction
func (m *TransactionManagerImpl) TransactionStatus(ctx context.Context, id model.TransactionID) (model.TransactionStatus, error) {
	m.mu.RLock()
	txn, ok := m.active[id]
	m.mu.RUnlock()
	if ok {
		return txn.Status(), nil
	}

	results, err := m.history.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list transaction history: %w", err)
	}
	for _, res := range results {
		if res.TransactionID.Equals(id) {
			return res.Status, nil
		}
	}
	return "", fmt.Errorf("%w: %s", model.ErrTransactionNotFound, id.String())
}

// ActiveTransactions lists in-flight transactions, oldest first
func (m *TransactionManagerImpl) ActiveTransactions() []*transaction.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txns := make([]*transaction.Transaction, 0, len(m.active))
	for _, txn := range m.active {
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt().Before(txns[j].CreatedAt())
	})
	return txns
}

// CancelTransaction forces a rollback and removes the transaction from
// the active set
func (m *TransactionManagerImpl) CancelTransaction(ctx context.Context, id model.TransactionID) (bool, error) {
	m.mu.RLock()
	txn, ok := m.active[id]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	m.rollbackAfterFailure(ctx, txn)
	m.record(ctx, txn, nil, "", nil)
	m.logger.Info("Cancelled transaction %s", id.String())
	return true, nil
}

// TransactionHistory returns recorded results, oldest first
func (m *TransactionManagerImpl) TransactionHistory(ctx context.Context, userID string) ([]*transaction.Result, error) {
	if userID == "" {
		return m.history.List(ctx)
	}
	return m.history.ListByUser(ctx, userID)
}

// CleanupTransactions purges history entries older than the given age
func (m *TransactionManagerImpl) CleanupTransactions(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed, err := m.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup transaction history: %w", err)
	}
	if removed > 0 {
		m.logger.Info("Cleaned up %d transaction records older than %s", removed, olderThan)
	}
	return removed, nil
}

// completedStep pairs a finished migration step with its transaction and
// pre-step checkpoint for a possible later phase rollback.
type completedStep struct {
	step  *migration.Step
	txn   *transaction.Transaction
	point *rollback.Point
}

// validateAll runs every operation's Validate, failing fast on the
// first invalid one so nothing executes with a known-bad batch
func (m *TransactionManagerImpl) validateAll(ctx context.Context, txn *transaction.Transaction, ops ...operation.AtomicOperation) error {
	for _, op := range ops {
		if result := op.Validate(ctx, txn.Context()); !result.IsValid {
			return fmt.Errorf("%w: %s: %s",
				model.ErrOperationValidationFailed, op.Descriptor().ID, strings.Join(result.Errors, "; "))
		}
	}
	return nil
}

// runBatch executes operations strictly in order inside txn. An
// operation is added to the transaction only after its Execute
// succeeds, so a failing operation's own rollback is never invoked;
// only completed predecessors are undone by a later Rollback.
func (m *TransactionManagerImpl) runBatch(ctx context.Context, txn *transaction.Transaction, ops []operation.AtomicOperation) ([]interface{}, []string, string, error) {
	values := make([]interface{}, 0, len(ops))
	executed := make([]string, 0, len(ops))

	for _, op := range ops {
		op := op
		value, err := txn.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return op.Execute(ctx, txn.Context())
		})
		if err != nil {
			return values, executed, op.Descriptor().ID, err
		}
		if err := txn.AddOperation(op); err != nil {
			return values, executed, op.Descriptor().ID, err
		}
		values = append(values, value)
		executed = append(executed, op.Descriptor().ID)
	}
	return values, executed, "", nil
}

// rollbackAfterFailure rolls a transaction back best-effort and logs
// every operation whose rollback failed
func (m *TransactionManagerImpl) rollbackAfterFailure(ctx context.Context, txn *transaction.Transaction) {
	if err := txn.Rollback(ctx); err != nil {
		m.logger.Error("Rollback of transaction %s could not start: %v", txn.ID().String(), err)
		return
	}
	for _, f := range txn.RollbackFailures() {
		m.logger.Warn("Rollback of operation %s failed: %s", f.OperationID, f.Message)
	}
}

// phaseRollback undoes previously completed migration steps in reverse
// completion order: each step's operations roll back in reverse, then
// the step's pre-step checkpoint is restored. Best-effort throughout;
// the completed-step list is cleared because none of them count as
// applied afterward.
func (m *TransactionManagerImpl) phaseRollback(ctx context.Context, res *migration.Result, completed []completedStep) {
	m.logger.Warn("Phase rollback of migration %s: undoing %d completed steps", res.MigrationID.String(), len(completed))

	for i := len(completed) - 1; i >= 0; i-- {
		cs := completed[i]
		ops := cs.step.Operations()
		for j := len(ops) - 1; j >= 0; j-- {
			if err := ops[j].Rollback(ctx, cs.txn.Context()); err != nil {
				m.logger.Warn("Phase rollback of operation %s failed: %v", ops[j].Descriptor().ID, err)
			}
		}
		if err := m.restorePointSnapshots(ctx, cs.point); err != nil {
			m.logger.Warn("Phase rollback restore of point %s failed: %v", cs.point.ID().String(), err)
		}
	}

	res.CompletedSteps = []string{}
	res.Metadata["phase_rollback"] = true
}

// findRollbackPoint searches active transactions first, then history
func (m *TransactionManagerImpl) findRollbackPoint(ctx context.Context, pointID model.RollbackPointID) *rollback.Point {
	m.mu.RLock()
	for _, txn := range m.active {
		for _, p := range txn.RollbackPoints() {
			if p.ID().Equals(pointID) {
				m.mu.RUnlock()
				return p
			}
		}
	}
	m.mu.RUnlock()

	results, err := m.history.List(ctx)
	if err != nil {
		m.logger.Warn("History search for rollback point %s failed: %v", pointID.String(), err)
		return nil
	}
	for _, res := range results {
		if p := res.PointByID(pointID); p != nil {
			return p
		}
	}
	return nil
}

// restorePointSnapshots restores every snapshot a rollback point refers
// to, stopping at the first failure
func (m *TransactionManagerImpl) restorePointSnapshots(ctx context.Context, point *rollback.Point) error {
	for name, snapID := range point.Snapshots() {
		if err := m.state.RestoreFromSnapshot(ctx, snapID); err != nil {
			return fmt.Errorf("restore %s snapshot %s: %w", name, snapID.String(), err)
		}
	}
	return nil
}

// record turns a finished transaction into a durable Result, appends it
// to history, and drops the transaction from the active set. History
// append failures are logged and never change the transaction outcome.
func (m *TransactionManagerImpl) record(ctx context.Context, txn *transaction.Transaction, value interface{}, errText string, executed []string) *transaction.Result {
	if executed == nil {
		executed = []string{}
	}
	txCtx := txn.Context()
	res := &transaction.Result{
		TransactionID:      txn.ID(),
		Status:             txn.Status(),
		Value:              value,
		Error:              errText,
		RollbackPoints:     txn.RollbackPoints(),
		ExecutedOperations: executed,
		RollbackFailures:   txn.RollbackFailures(),
		UserID:             txCtx.UserID(),
		SessionID:          txCtx.SessionID(),
		Duration:           time.Since(txn.CreatedAt()),
		Metadata:           txCtx.Metadata(),
		FinishedAt:         time.Now(),
	}

	if err := m.history.Append(ctx, res); err != nil {
		m.logger.Warn("History append for transaction %s failed: %v", txn.ID().String(), err)
	}

	m.mu.Lock()
	delete(m.active, txn.ID())
	m.mu.Unlock()

	switch res.Status {
	case model.StatusCommitted:
		m.metrics.RecordTransactionCommitted()
	case model.StatusRolledBack:
		m.metrics.RecordTransactionRolledBack()
		if n := len(res.RollbackFailures); n > 0 {
			m.metrics.RecordRollbackStepFailures(n)
		}
	case model.StatusFailed:
		m.metrics.RecordTransactionFailed()
	}

	m.logger.Info("Finished transaction %s status=%s duration=%s", txn.ID().String(), res.Status, res.Duration)
	return res
}

func unmetPrerequisites(step *migration.Step, done map[string]bool) []string {
	var unmet []string
	for _, pre := range step.Prerequisites() {
		if !done[pre] {
			unmet = append(unmet, pre)
		}
	}
	return unmet
}
