// Package migration models multi-step migrations: ordered batches of
// operations with a per-step choice of rollback blast radius.
package migration

import (
	"errors"
	"fmt"
	"time"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/domain/model/rollback"
)

// RollbackStrategy selects how much a failing step takes down with it:
// just its own transaction, or every previously completed step.
type RollbackStrategy string

const (
	RollbackStrategyStep  RollbackStrategy = "step"
	RollbackStrategyPhase RollbackStrategy = "phase"
)

// String returns the string representation
func (s RollbackStrategy) String() string {
	return string(s)
}

// IsValid validates the rollback strategy
func (s RollbackStrategy) IsValid() bool {
	switch s {
	case RollbackStrategyStep, RollbackStrategyPhase:
		return true
	default:
		return false
	}
}

// Step is one unit of a migration: an ordered batch of operations run
// inside a dedicated transaction.
type Step struct {
	id                string
	name              string
	description       string
	phase             string
	operations        []operation.AtomicOperation
	prerequisites     []string
	rollbackStrategy  RollbackStrategy
	validationRules   []string
	estimatedDuration time.Duration
}

// NewStep creates a migration step. An empty strategy defaults to step
// scope.
func NewStep(id, name string, operations []operation.AtomicOperation, strategy RollbackStrategy) (*Step, error) {
	if id == "" {
		return nil, errors.New("migration step id is required")
	}
	if name == "" {
		return nil, errors.New("migration step name is required")
	}
	if len(operations) == 0 {
		return nil, fmt.Errorf("migration step %s has no operations", id)
	}
	if strategy == "" {
		strategy = RollbackStrategyStep
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("migration step %s: invalid rollback strategy %q", id, strategy)
	}
	return &Step{
		id:               id,
		name:             name,
		operations:       append([]operation.AtomicOperation(nil), operations...),
		rollbackStrategy: strategy,
	}, nil
}

// WithDescription returns a copy carrying a description
func (s *Step) WithDescription(description string) *Step {
	clone := *s
	clone.description = description
	return &clone
}

// WithPhase returns a copy carrying a phase label
func (s *Step) WithPhase(phase string) *Step {
	clone := *s
	clone.phase = phase
	return &clone
}

// WithPrerequisites returns a copy carrying prerequisite step ids
func (s *Step) WithPrerequisites(ids []string) *Step {
	clone := *s
	clone.prerequisites = append([]string(nil), ids...)
	return &clone
}

// WithValidationRules returns a copy carrying validation rule names
func (s *Step) WithValidationRules(rules []string) *Step {
	clone := *s
	clone.validationRules = append([]string(nil), rules...)
	return &clone
}

// WithEstimatedDuration returns a copy carrying a duration estimate
func (s *Step) WithEstimatedDuration(d time.Duration) *Step {
	clone := *s
	clone.estimatedDuration = d
	return &clone
}

// ID returns the step id
func (s *Step) ID() string {
	return s.id
}

// Name returns the step name
func (s *Step) Name() string {
	return s.name
}

// Description returns the step description
func (s *Step) Description() string {
	return s.description
}

// Phase returns the phase label
func (s *Step) Phase() string {
	return s.phase
}

// Operations returns a copy of the step's operations in execution order
func (s *Step) Operations() []operation.AtomicOperation {
	return append([]operation.AtomicOperation(nil), s.operations...)
}

// Prerequisites returns a copy of the prerequisite step ids
func (s *Step) Prerequisites() []string {
	return append([]string(nil), s.prerequisites...)
}

// RollbackStrategy returns the step's rollback scope
func (s *Step) RollbackStrategy() RollbackStrategy {
	return s.rollbackStrategy
}

// ValidationRules returns a copy of the validation rule names
func (s *Step) ValidationRules() []string {
	return append([]string(nil), s.validationRules...)
}

// EstimatedDuration returns the step duration estimate
func (s *Step) EstimatedDuration() time.Duration {
	return s.estimatedDuration
}

// Result reports a migration run. Migrations never fail by error return;
// the Success flag and Error text carry the outcome so batch tooling can
// branch without exception handling.
type Result struct {
	MigrationID    model.MigrationID      `json:"-"`
	Success        bool                   `json:"success"`
	CompletedSteps []string               `json:"completed_steps"`
	FailedStep     string                 `json:"failed_step,omitempty"`
	RollbackPoints []*rollback.Point      `json:"-"`
	Error          string                 `json:"error,omitempty"`
	Duration       time.Duration          `json:"duration"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
