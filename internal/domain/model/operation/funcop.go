package operation

import (
	"context"

	"github.com/ductware/atomtx/internal/domain/model"
)

// FuncOperation adapts plain functions to the AtomicOperation interface.
// RollbackFn and ValidateFn may be nil: a nil rollback is a no-op and a
// nil validator falls back to checking that the operation is runnable.
type FuncOperation struct {
	Desc       Descriptor
	ExecuteFn  func(ctx context.Context, txCtx *model.TransactionContext) (interface{}, error)
	RollbackFn func(ctx context.Context, txCtx *model.TransactionContext) error
	ValidateFn func(ctx context.Context, txCtx *model.TransactionContext) model.ValidationResult
}

// Descriptor returns the operation's identity and metadata
func (f *FuncOperation) Descriptor() Descriptor {
	return f.Desc
}

// Execute runs ExecuteFn
func (f *FuncOperation) Execute(ctx context.Context, txCtx *model.TransactionContext) (interface{}, error) {
	return f.ExecuteFn(ctx, txCtx)
}

// Rollback runs RollbackFn when set; nil means nothing to undo
func (f *FuncOperation) Rollback(ctx context.Context, txCtx *model.TransactionContext) error {
	if f.RollbackFn == nil {
		return nil
	}
	return f.RollbackFn(ctx, txCtx)
}

// Validate runs ValidateFn when set, otherwise checks the operation
// has an id and an execute function
func (f *FuncOperation) Validate(ctx context.Context, txCtx *model.TransactionContext) model.ValidationResult {
	if f.ValidateFn != nil {
		return f.ValidateFn(ctx, txCtx)
	}
	result := model.NewValidationResult()
	if f.Desc.ID == "" {
		result.AddError("operation id is required")
	}
	if f.ExecuteFn == nil {
		result.AddError("operation has no execute function")
	}
	return result
}
