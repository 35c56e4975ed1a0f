package rollback

import (
	"errors"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
)

// Step wraps one executed operation's rollback as an undo step.
type Step struct {
	op                operation.AtomicOperation
	operationID       string
	name              string
	estimatedDuration time.Duration
	risk              model.RiskLevel
}

// NewStepFromOperation builds an undo step for an executed operation.
// The duration estimate is half the operation's configured timeout; the
// risk grade comes from the operation's priority.
func NewStepFromOperation(op operation.AtomicOperation) *Step {
	desc := op.Descriptor()
	return &Step{
		op:                op,
		operationID:       desc.ID,
		name:              desc.Name,
		estimatedDuration: desc.Timeout / 2,
		risk:              GradeRisk(desc.Priority),
	}
}

// Operation returns the wrapped operation
func (s *Step) Operation() operation.AtomicOperation {
	return s.op
}

// OperationID returns the wrapped operation's id
func (s *Step) OperationID() string {
	return s.operationID
}

// Name returns the wrapped operation's name
func (s *Step) Name() string {
	return s.name
}

// EstimatedDuration returns the undo duration estimate
func (s *Step) EstimatedDuration() time.Duration {
	return s.estimatedDuration
}

// Risk returns the step's risk grade
func (s *Step) Risk() model.RiskLevel {
	return s.risk
}

// GradeRisk maps an operation priority to a qualitative risk level
func GradeRisk(priority int) model.RiskLevel {
	switch {
	case priority >= 8:
		return model.RiskHigh
	case priority >= 4:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Strategy is an executable undo plan over a list of operations.
// The overall duration estimate is the naive sum of the step estimates
// even for the parallel kind; callers must not read true parallel
// speedup into it.
type Strategy struct {
	id                model.StrategyID
	kind              model.StrategyKind
	steps             []*Step
	estimatedDuration time.Duration
	dependencies      []string
	createdAt         time.Time
}

// NewStrategy builds a strategy from undo steps. Dependencies are the
// ids of the operations the strategy was built over.
func NewStrategy(kind model.StrategyKind, steps []*Step) (*Strategy, error) {
	if !kind.IsValid() {
		return nil, errors.New("invalid strategy kind: " + kind.String())
	}
	if len(steps) == 0 {
		return nil, errors.New("rollback strategy requires at least one step")
	}

	var total time.Duration
	deps := make([]string, 0, len(steps))
	for _, step := range steps {
		total += step.EstimatedDuration()
		deps = append(deps, step.OperationID())
	}

	return &Strategy{
		id:                model.NewStrategyID(),
		kind:              kind,
		steps:             append([]*Step(nil), steps...),
		estimatedDuration: total,
		dependencies:      deps,
		createdAt:         time.Now(),
	}, nil
}

// ID returns the strategy id
func (s *Strategy) ID() model.StrategyID {
	return s.id
}

// Kind returns the execution kind
func (s *Strategy) Kind() model.StrategyKind {
	return s.kind
}

// Steps returns a copy of the undo steps in plan order
func (s *Strategy) Steps() []*Step {
	return append([]*Step(nil), s.steps...)
}

// EstimatedDuration returns the naive-sum duration estimate
func (s *Strategy) EstimatedDuration() time.Duration {
	return s.estimatedDuration
}

// Dependencies returns the ids of the operations the plan covers
func (s *Strategy) Dependencies() []string {
	return copyStrings(s.dependencies)
}

// CreatedAt returns the strategy creation time
func (s *Strategy) CreatedAt() time.Time {
	return s.createdAt
}

// ImpactAnalysis describes what restoring a rollback point would touch.
type ImpactAnalysis struct {
	RollbackPointID    string          `json:"rollback_point_id"`
	AffectedServices   []string        `json:"affected_services"`
	AffectedUsers      int             `json:"affected_users"`
	DataLossRisk       model.RiskLevel `json:"data_loss_risk"`
	EstimatedDowntime  time.Duration   `json:"estimated_downtime"`
	RecommendedActions []string        `json:"recommended_actions"`
}
