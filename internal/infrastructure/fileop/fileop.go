// Package fileop provides reversible file operations. Every mutation
// backs up the previous content first, so rollback restores exactly
// what execution replaced or removed.
package fileop

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/ductware/atomtx/internal/domain/model"
	"github.com/ductware/atomtx/internal/domain/model/operation"
	"github.com/ductware/atomtx/internal/infrastructure/persistence/file"
)

// Default descriptor values. Priorities feed the risk grading of undo
// steps: destructive operations rank higher than additive ones.
const (
	defaultTimeout   = 10 * time.Second
	priorityCopyFile = 2
	priorityWrite    = 4
	priorityDelete   = 8
)

// baseOperation carries the descriptor and the shared mutable execution
// state of a file operation
type baseOperation struct {
	mu       sync.Mutex
	desc     operation.Descriptor
	executed bool
	existed  bool
	backup   []byte
}

// Descriptor returns the operation's descriptor
func (b *baseOperation) Descriptor() operation.Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.desc
}

// SetTimeout overrides the descriptor timeout before execution
func (b *baseOperation) SetTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.desc.Timeout = d
}

// SetPriority overrides the descriptor priority before execution
func (b *baseOperation) SetPriority(p int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.desc.Priority = p
}

// SetDependencies records the operation ids this one depends on
func (b *baseOperation) SetDependencies(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.desc.Dependencies = append([]string(nil), ids...)
}

// rememberTarget snapshots a target file's pre-execution content
func (b *baseOperation) rememberTarget(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	b.existed = exists
	if exists {
		backup, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("back up %s: %w", path, err)
		}
		b.backup = backup
	}
	return nil
}

// restoreTarget puts a target file back to its pre-execution content
func (b *baseOperation) restoreTarget(fs afero.Fs, path string) error {
	if b.existed {
		if err := file.WriteFileAtomic(fs, path, b.backup); err != nil {
			return fmt.Errorf("restore %s: %w", path, err)
		}
		return nil
	}
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// WriteFileOperation writes content to a path, restoring or removing the
// file on rollback
type WriteFileOperation struct {
	baseOperation
	fs      afero.Fs
	path    string
	content []byte
}

// NewWriteFile creates a write operation for the given path
func NewWriteFile(fs afero.Fs, id, path string, content []byte) *WriteFileOperation {
	op := &WriteFileOperation{fs: fs, path: path, content: content}
	op.desc = operation.Descriptor{
		ID:          id,
		Name:        fmt.Sprintf("write %s", path),
		Description: fmt.Sprintf("Write %d bytes to %s", len(content), path),
		Timeout:     defaultTimeout,
		Priority:    priorityWrite,
	}
	return op
}

// Execute writes the content, backing up any previous file first
func (o *WriteFileOperation) Execute(ctx context.Context, txCtx *model.TransactionContext) (interface{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.rememberTarget(o.fs, o.path); err != nil {
		return nil, err
	}
	if err := file.WriteFileAtomic(o.fs, o.path, o.content); err != nil {
		return nil, fmt.Errorf("write %s: %w", o.path, err)
	}
	o.executed = true
	return map[string]interface{}{"path": o.path, "bytes": len(o.content)}, nil
}

// Rollback restores the pre-execution content
func (o *WriteFileOperation) Rollback(ctx context.Context, txCtx *model.TransactionContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.executed {
		return nil
	}
	return o.restoreTarget(o.fs, o.path)
}

// Validate checks the operation can plausibly run
func (o *WriteFileOperation) Validate(ctx context.Context, txCtx *model.TransactionContext) model.ValidationResult {
	result := model.NewValidationResult()
	if o.path == "" {
		result.AddError(fmt.Sprintf("%s: target path is empty", o.Descriptor().ID))
	}
	return result
}

// CopyFileOperation copies a source file over a destination, restoring
// or removing the destination on rollback
type CopyFileOperation struct {
	baseOperation
	fs  afero.Fs
	src string
	dst string
}

// NewCopyFile creates a copy operation from src to dst
func NewCopyFile(fs afero.Fs, id, src, dst string) *CopyFileOperation {
	op := &CopyFileOperation{fs: fs, src: src, dst: dst}
	op.desc = operation.Descriptor{
		ID:          id,
		Name:        fmt.Sprintf("copy %s to %s", src, dst),
		Description: fmt.Sprintf("Copy %s to %s", src, dst),
		Timeout:     defaultTimeout,
		Priority:    priorityCopyFile,
	}
	return op
}

// Execute copies the source content, backing up the destination first
func (o *CopyFileOperation) Execute(ctx context.Context, txCtx *model.TransactionContext) (interface{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	content, err := afero.ReadFile(o.fs, o.src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.src, err)
	}
	if err := o.rememberTarget(o.fs, o.dst); err != nil {
		return nil, err
	}
	if err := file.WriteFileAtomic(o.fs, o.dst, content); err != nil {
		return nil, fmt.Errorf("copy to %s: %w", o.dst, err)
	}
	o.executed = true
	return map[string]interface{}{"src": o.src, "dst": o.dst, "bytes": len(content)}, nil
}

// Rollback restores the destination's pre-execution content
func (o *CopyFileOperation) Rollback(ctx context.Context, txCtx *model.TransactionContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.executed {
		return nil
	}
	return o.restoreTarget(o.fs, o.dst)
}

// Validate checks the source exists before anything executes
func (o *CopyFileOperation) Validate(ctx context.Context, txCtx *model.TransactionContext) model.ValidationResult {
	result := model.NewValidationResult()
	id := o.Descriptor().ID
	if o.src == "" || o.dst == "" {
		result.AddError(fmt.Sprintf("%s: source and destination paths are required", id))
		return result
	}
	exists, err := afero.Exists(o.fs, o.src)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: stat %s: %v", id, o.src, err))
		return result
	}
	if !exists {
		result.AddError(fmt.Sprintf("%s: source %s does not exist", id, o.src))
	}
	return result
}

// DeleteFileOperation removes a file, restoring its content on rollback
type DeleteFileOperation struct {
	baseOperation
	fs   afero.Fs
	path string
}

// NewDeleteFile creates a delete operation for the given path
func NewDeleteFile(fs afero.Fs, id, path string) *DeleteFileOperation {
	op := &DeleteFileOperation{fs: fs, path: path}
	op.desc = operation.Descriptor{
		ID:          id,
		Name:        fmt.Sprintf("delete %s", path),
		Description: fmt.Sprintf("Delete %s", path),
		Timeout:     defaultTimeout,
		Priority:    priorityDelete,
	}
	return op
}

// Execute backs up and removes the file
func (o *DeleteFileOperation) Execute(ctx context.Context, txCtx *model.TransactionContext) (interface{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.rememberTarget(o.fs, o.path); err != nil {
		return nil, err
	}
	if !o.existed {
		return nil, fmt.Errorf("delete %s: file does not exist", o.path)
	}
	if err := o.fs.Remove(o.path); err != nil {
		return nil, fmt.Errorf("delete %s: %w", o.path, err)
	}
	o.executed = true
	return map[string]interface{}{"path": o.path, "bytes": len(o.backup)}, nil
}

// Rollback writes the backed-up content back
func (o *DeleteFileOperation) Rollback(ctx context.Context, txCtx *model.TransactionContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.executed {
		return nil
	}
	if err := file.WriteFileAtomic(o.fs, o.path, o.backup); err != nil {
		return fmt.Errorf("restore %s: %w", o.path, err)
	}
	return nil
}

// Validate checks the target exists so the batch aborts before touching
// anything when a planned deletion cannot happen
func (o *DeleteFileOperation) Validate(ctx context.Context, txCtx *model.TransactionContext) model.ValidationResult {
	result := model.NewValidationResult()
	id := o.Descriptor().ID
	if o.path == "" {
		result.AddError(fmt.Sprintf("%s: target path is empty", id))
		return result
	}
	exists, err := afero.Exists(o.fs, o.path)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: stat %s: %v", id, o.path, err))
		return result
	}
	if !exists {
		result.AddError(fmt.Sprintf("%s: target %s does not exist", id, o.path))
	}
	return result
}
