package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDefinitionNotFound is returned when the requested definition does not exist.
	ErrDefinitionNotFound = errors.New("workflow definition not found")
	// ErrDefinitionInactive is returned when the definition exists but is not active.
	ErrDefinitionInactive = errors.New("workflow definition is not active")
	// ErrExecutionNotFound is returned when the requested execution does not exist.
	ErrExecutionNotFound = errors.New("workflow execution not found")
	// ErrInvalidState is returned when an operation is not valid for the
	// execution's current status.
	ErrInvalidState = errors.New("operation not valid in current execution state")
	// ErrMissingStart is returned when a definition reaches the driver without
	// a START step. Validation rejects such definitions at save time.
	ErrMissingStart = errors.New("workflow definition has no start step")
	// ErrNotAnApprover is returned when the deciding user is not in the
	// pending gate's approver list.
	ErrNotAnApprover = errors.New("user is not an approver for this gate")
)

// VariableError reports required variables missing or invalid at request time.
type VariableError struct {
	Missing []string
	Invalid []string
}

func (e *VariableError) Error() string {
	var parts []string

	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required variables: %s", strings.Join(e.Missing, ", ")))
	}

	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid variables: %s", strings.Join(e.Invalid, ", ")))
	}

	return strings.Join(parts, "; ")
}

// IsVariableError reports whether err is a request-time variable failure.
func IsVariableError(err error) bool {
	var varErr *VariableError

	return errors.As(err, &varErr)
}
