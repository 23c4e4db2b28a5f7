// Package services provides the application layer between the HTTP surface
// and the engine/persistence, with a standardized error taxonomy.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caseflowhq/caseflow/pkg/validation"
)

// Business logic errors; the web layer maps these to HTTP status codes.
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")

	// Not-found errors (404).
	ErrDefinitionNotFound = errors.New("workflow definition not found")
	ErrExecutionNotFound  = errors.New("workflow execution not found")

	// Conflicts (409).
	ErrDefinitionInUse = errors.New("definition has non-terminal executions")

	// Invalid state transitions (422).
	ErrInvalidState = errors.New("operation not valid in current execution state")

	// Authorization-adjacent (403).
	ErrNotAnApprover = errors.New("user is not an approver for this gate")
)

// ValidationFailure carries the full violation list from definition or
// request validation.
type ValidationFailure struct {
	Violations []validation.ValidationError
}

func (e *ValidationFailure) Error() string {
	messages := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		messages = append(messages, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}

	return "validation failed: " + strings.Join(messages, "; ")
}

func (e *ValidationFailure) Is(target error) bool {
	return target == ErrInvalidRequest
}

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound) || errors.Is(err, ErrExecutionNotFound)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDefinitionInUse)
}

// IsInvalidStateError checks if an error should map to HTTP 422.
func IsInvalidStateError(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
