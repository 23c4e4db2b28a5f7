// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrExecutionNotFound indicates a workflow execution was not found.
	ErrExecutionNotFound = errors.New("workflow execution not found")

	// ErrVersionConflict indicates an optimistic-lock failure: the record was
	// modified since it was read.
	ErrVersionConflict = errors.New("execution version conflict")

	// ErrInvalidSortField indicates a sort field outside the allowlist.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// StoreError wraps storage errors with the operation and entity id.
type StoreError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	Entity   string // "definition" or "execution"
	EntityID string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDefinitionError creates a storage error for a definition operation.
func NewDefinitionError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: "definition", EntityID: id, Err: err}
}

// NewExecutionError creates a storage error for an execution operation.
func NewExecutionError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: "execution", EntityID: id, Err: err}
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic-lock failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsInvalidSortField checks if an error indicates a rejected sort field.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
