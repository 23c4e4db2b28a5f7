package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/graph"
	"github.com/caseflowhq/caseflow/pkg/models"
)

// Cancel stops an active execution. The drive observes the persisted status
// change before dispatching its next step.
func (e *Engine) Cancel(ctx context.Context, executionID, cancelledBy string) (*models.WorkflowExecution, error) {
	lock := e.lockFor(executionID)
	lock.Lock()
	defer lock.Unlock()

	execution, err := e.loadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusActive {
		return nil, fmt.Errorf("cannot cancel execution in status %q: %w", execution.Status, ErrInvalidState)
	}

	execution.NextSteps = nil
	execution.Finish(models.ExecutionStatusCancelled, time.Now().UTC())

	err = e.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}

	e.publish(ctx, events.ExecutionCancelled{
		BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, execution),
		CancelledBy: cancelledBy,
		DurationMs:  execution.DurationMs,
	})

	e.logger.InfoContext(ctx, "Execution cancelled", "execution_id", executionID, "cancelled_by", cancelledBy)

	return execution, nil
}

// Retry resumes a failed execution from its last completed step. Recorded
// errors are cleared and the status returns to ACTIVE.
func (e *Engine) Retry(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := e.loadExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusError {
		return nil, fmt.Errorf("cannot retry execution in status %q: %w", execution.Status, ErrInvalidState)
	}

	definition, err := e.persistence.DefinitionRepository().GetByID(ctx, execution.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	if definition == nil {
		return nil, ErrDefinitionNotFound
	}

	if last, ok := execution.LastCompletedStep(); ok {
		execution.NextSteps = graph.NextSteps(definition.Steps, last)
	} else {
		startID, ok := graph.FindStart(definition.Steps)
		if !ok {
			return nil, ErrMissingStart
		}

		execution.NextSteps = []string{startID}
	}

	execution.Status = models.ExecutionStatusActive
	execution.Errors = nil
	execution.EndTime = nil
	execution.DurationMs = 0

	err = e.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist retry: %w", err)
	}

	e.publish(ctx, events.ExecutionResumed{
		BaseEvent: e.baseEvent(events.ExecutionResumedEvent, execution),
	})

	e.logger.InfoContext(ctx, "Execution retried", "execution_id", executionID, "next_steps", execution.NextSteps)

	e.driveAsync(ctx, definition, execution)

	return execution, nil
}

// Approve records one approver's decision on a suspended gate. A rejection
// resolves the gate immediately; approvals accumulate until the gate's
// approval type is satisfied. Once resolved the execution resumes.
func (e *Engine) Approve(ctx context.Context, executionID, approver string, approved bool) (*models.WorkflowExecution, error) {
	lock := e.lockFor(executionID)
	lock.Lock()

	execution, err := e.loadExecution(ctx, executionID)
	if err != nil {
		lock.Unlock()

		return nil, err
	}

	if execution.Status != models.ExecutionStatusWaitingApproval || execution.PendingApproval == nil {
		lock.Unlock()

		return nil, fmt.Errorf("execution is not awaiting approval: %w", ErrInvalidState)
	}

	pending := execution.PendingApproval

	if !isApprover(pending.Approvers, approver) {
		lock.Unlock()

		return nil, fmt.Errorf("%q may not decide gate %q: %w", approver, pending.StepID, ErrNotAnApprover)
	}

	now := time.Now().UTC()

	if !approved {
		decision := false
		pending.Decision = &decision
		pending.DecidedBy = approver
		pending.DecidedAt = &now
	} else {
		if !isApprover(pending.Approved, approver) {
			pending.Approved = append(pending.Approved, approver)
		}

		if gateSatisfied(pending) {
			decision := true
			pending.Decision = &decision
			pending.DecidedBy = approver
			pending.DecidedAt = &now
		}
	}

	resolved := pending.Decision != nil
	if resolved {
		execution.Status = models.ExecutionStatusActive
	}

	err = e.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		lock.Unlock()

		return nil, fmt.Errorf("failed to persist approval: %w", err)
	}

	lock.Unlock()

	if !resolved {
		e.logger.InfoContext(ctx, "Approval recorded, gate not yet satisfied",
			"execution_id", executionID,
			"step_id", pending.StepID,
			"approved_count", len(pending.Approved))

		return execution, nil
	}

	e.publish(ctx, events.ExecutionResumed{
		BaseEvent: e.baseEvent(events.ExecutionResumedEvent, execution),
		StepID:    pending.StepID,
		ResumedBy: approver,
	})

	e.logger.InfoContext(ctx, "Approval gate resolved",
		"execution_id", executionID,
		"step_id", pending.StepID,
		"approved", approved)

	definition, err := e.persistence.DefinitionRepository().GetByID(ctx, execution.DefinitionID)
	if err != nil || definition == nil {
		return nil, fmt.Errorf("failed to load definition for resume: %w", err)
	}

	e.driveAsync(ctx, definition, execution)

	return execution, nil
}

func (e *Engine) loadExecution(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	if execution == nil {
		return nil, ErrExecutionNotFound
	}

	return execution, nil
}

func isApprover(list []string, user string) bool {
	for _, item := range list {
		if item == user {
			return true
		}
	}

	return false
}

// gateSatisfied applies the gate's approval type to the accumulated
// approvals: SINGLE needs one, UNANIMOUS needs every approver, MULTIPLE needs
// a strict majority.
func gateSatisfied(pending *models.PendingApproval) bool {
	switch pending.ApprovalType {
	case "UNANIMOUS":
		return len(pending.Approved) >= len(pending.Approvers)
	case "MULTIPLE":
		return len(pending.Approved)*2 > len(pending.Approvers)
	default:
		return len(pending.Approved) >= 1
	}
}
