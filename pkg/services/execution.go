package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/engine"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/validation"
)

// Execution is the application service for workflow executions. It fronts the
// engine, translating engine errors into the service taxonomy.
type Execution struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
}

// NewExecution creates an execution service.
func NewExecution(logger *slog.Logger, persist persistence.Persistence, eng *engine.Engine) *Execution {
	return &Execution{
		logger:      logger.With("module", "execution_service"),
		persistence: persist,
		engine:      eng,
	}
}

// Execute starts an execution of a definition.
func (s *Execution) Execute(ctx context.Context, req engine.ExecuteRequest) (*engine.ExecuteResult, error) {
	result, err := s.engine.Execute(ctx, req)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return result, nil
}

// Get loads one execution.
func (s *Execution) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := s.engine.ExecutionStatus(ctx, executionID)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return execution, nil
}

// ListExecutionsRequest filters execution listings.
type ListExecutionsRequest struct {
	DefinitionID string
	Status       *models.ExecutionStatus
	Limit        int
	Offset       int
}

// List retrieves executions matching the filters, newest first.
func (s *Execution) List(ctx context.Context, req ListExecutionsRequest) ([]*models.WorkflowExecution, error) {
	executions, err := s.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
		DefinitionID: req.DefinitionID,
		Status:       req.Status,
		Limit:        req.Limit,
		Offset:       req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return executions, nil
}

// Cancel stops an active execution.
func (s *Execution) Cancel(ctx context.Context, executionID, cancelledBy string) (*models.WorkflowExecution, error) {
	execution, err := s.engine.Cancel(ctx, executionID, cancelledBy)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return execution, nil
}

// Retry resumes a failed execution from its last completed step.
func (s *Execution) Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := s.engine.Retry(ctx, executionID)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return execution, nil
}

// Approve records an approver's decision on a suspended approval gate.
func (s *Execution) Approve(ctx context.Context, executionID, approver string, approved bool) (*models.WorkflowExecution, error) {
	execution, err := s.engine.Approve(ctx, executionID, approver, approved)
	if err != nil {
		return nil, mapEngineError(err)
	}

	return execution, nil
}

// mapEngineError converts engine errors into the service taxonomy so the web
// layer can select status codes with errors.Is checks alone.
func mapEngineError(err error) error {
	var varErr *engine.VariableError

	switch {
	case errors.Is(err, engine.ErrDefinitionNotFound):
		return ErrDefinitionNotFound
	case errors.Is(err, engine.ErrExecutionNotFound):
		return ErrExecutionNotFound
	case errors.Is(err, engine.ErrDefinitionInactive):
		return fmt.Errorf("definition is inactive: %w", ErrInvalidState)
	case errors.Is(err, engine.ErrInvalidState):
		return fmt.Errorf("%v: %w", err, ErrInvalidState)
	case errors.Is(err, engine.ErrNotAnApprover):
		return fmt.Errorf("%v: %w", err, ErrNotAnApprover)
	case errors.As(err, &varErr):
		violations := make([]validation.ValidationError, 0, len(varErr.Missing)+len(varErr.Invalid))

		for _, name := range varErr.Missing {
			violations = append(violations, validation.ValidationError{
				Field:   name,
				Code:    "MISSING_VARIABLE",
				Message: "required variable is missing",
			})
		}

		for _, name := range varErr.Invalid {
			violations = append(violations, validation.ValidationError{
				Field:   name,
				Code:    "INVALID_VARIABLE",
				Message: "variable failed its validation rule",
			})
		}

		return &ValidationFailure{Violations: violations}
	default:
		return err
	}
}
