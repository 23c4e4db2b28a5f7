// Package protocol defines the capability interfaces the engine dispatches to.
package protocol

import (
	"context"
	"errors"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/models"
)

// ErrAwaitingApproval is returned by a handler whose step must suspend until
// an external approval event resumes the execution.
var ErrAwaitingApproval = errors.New("step awaiting approval")

// StepInput is what a handler receives: the rendered config plus a read/write
// view of the execution variables.
type StepInput struct {
	Definition *models.WorkflowDefinition
	Execution  *models.WorkflowExecution
	Step       *models.WorkflowStep
	Variables  map[string]any
}

// StepHandler executes one step kind. Side effects are isolated to the
// returned output and to the external capability the handler wraps; the
// context carries the per-step timeout and cooperative cancellation.
type StepHandler interface {
	Execute(ctx context.Context, input StepInput, logger *slog.Logger) (map[string]any, error)
}

// StepHandlerFactory creates handlers for one step type from a config payload
// whose required keys have already been schema-checked.
type StepHandlerFactory interface {
	Create(config map[string]any) (StepHandler, error)
	Type() models.StepType

	// ConfigSchema returns the JSON Schema document the step config must
	// satisfy before dispatch, or an empty string when the type takes no
	// required configuration.
	ConfigSchema() string
}

// StepError is a structured handler failure carried back to the driver.
type StepError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *StepError) Error() string {
	return e.Message
}

// NewStepError creates a step error with the given code and message.
func NewStepError(code, message string, retryable bool) *StepError {
	return &StepError{Code: code, Message: message, Retryable: retryable}
}
