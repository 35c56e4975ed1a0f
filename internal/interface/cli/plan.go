package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/ductware/atomtx/internal/domain/model/migration"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/infrastructure/fileop"
)

// Operation types accepted in migration plans
const (
	opTypeWriteFile  = "write_file"
	opTypeCopyFile   = "copy_file"
	opTypeDeleteFile = "delete_file"
)

// MigrationPlan mirrors the structure of a plan YAML file
type MigrationPlan struct {
	Name  string      `yaml:"name"`
	Steps []*PlanStep `yaml:"steps"`
}

// PlanStep describes one migration step in the plan file
type PlanStep struct {
	ID               string           `yaml:"id"`
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description,omitempty"`
	Phase            string           `yaml:"phase,omitempty"`
	RollbackStrategy string           `yaml:"rollback_strategy,omitempty"`
	Prerequisites    []string         `yaml:"prerequisites,omitempty"`
	TimeoutSec       int              `yaml:"timeout_sec,omitempty"`
	Operations       []*PlanOperation `yaml:"operations"`
}

// PlanOperation describes one file operation within a step
type PlanOperation struct {
	ID      string `yaml:"id"`
	Type    string `yaml:"type"`
	Path    string `yaml:"path,omitempty"`
	Content string `yaml:"content,omitempty"`
	Src     string `yaml:"src,omitempty"`
	Dst     string `yaml:"dst,omitempty"`
}

// LoadMigrationPlan reads and parses a migration plan file
func LoadMigrationPlan(fs afero.Fs, path string) (*MigrationPlan, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	var plan MigrationPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	if plan.Name == "" {
		return nil, fmt.Errorf("plan %s has no name", path)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan %s has no steps", path)
	}
	return &plan, nil
}

// BuildSteps converts the plan into migration steps whose file operations
// target paths relative to workspace. Step names are NFKC-normalized so
// visually identical plan text produces identical step identities.
func (p *MigrationPlan) BuildSteps(fs afero.Fs, workspace string) ([]*migration.Step, error) {
	seenSteps := make(map[string]bool)
	seenOps := make(map[string]bool)

	steps := make([]*migration.Step, 0, len(p.Steps))
	for _, ps := range p.Steps {
		if seenSteps[ps.ID] {
			return nil, fmt.Errorf("duplicate step id: %s", ps.ID)
		}
		seenSteps[ps.ID] = true

		ops := make([]operation.AtomicOperation, 0, len(ps.Operations))
		for _, po := range ps.Operations {
			if seenOps[po.ID] {
				return nil, fmt.Errorf("step %s: duplicate operation id: %s", ps.ID, po.ID)
			}
			seenOps[po.ID] = true

			op, err := buildOperation(fs, workspace, po)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", ps.ID, err)
			}
			ops = append(ops, op)
		}

		step, err := migration.NewStep(
			ps.ID,
			norm.NFKC.String(ps.Name),
			ops,
			migration.RollbackStrategy(ps.RollbackStrategy),
		)
		if err != nil {
			return nil, err
		}

		if ps.Description != "" {
			step = step.WithDescription(ps.Description)
		}
		if ps.Phase != "" {
			step = step.WithPhase(ps.Phase)
		}
		if len(ps.Prerequisites) > 0 {
			step = step.WithPrerequisites(ps.Prerequisites)
		}
		if ps.TimeoutSec > 0 {
			step = step.WithEstimatedDuration(time.Duration(ps.TimeoutSec) * time.Second)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// buildOperation maps one plan entry to a concrete file operation
func buildOperation(fs afero.Fs, workspace string, po *PlanOperation) (operation.AtomicOperation, error) {
	if po.ID == "" {
		return nil, fmt.Errorf("operation of type %q has no id", po.Type)
	}

	switch po.Type {
	case opTypeWriteFile:
		if po.Path == "" {
			return nil, fmt.Errorf("operation %s: write_file requires path", po.ID)
		}
		return fileop.NewWriteFile(fs, po.ID, resolvePath(workspace, po.Path), []byte(po.Content)), nil

	case opTypeCopyFile:
		if po.Src == "" || po.Dst == "" {
			return nil, fmt.Errorf("operation %s: copy_file requires src and dst", po.ID)
		}
		return fileop.NewCopyFile(fs, po.ID, resolvePath(workspace, po.Src), resolvePath(workspace, po.Dst)), nil

	case opTypeDeleteFile:
		if po.Path == "" {
			return nil, fmt.Errorf("operation %s: delete_file requires path", po.ID)
		}
		return fileop.NewDeleteFile(fs, po.ID, resolvePath(workspace, po.Path)), nil

	default:
		return nil, fmt.Errorf("operation %s: unknown type %q (want %s, %s or %s)",
			po.ID, po.Type, opTypeWriteFile, opTypeCopyFile, opTypeDeleteFile)
	}
}

func resolvePath(workspace, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}
