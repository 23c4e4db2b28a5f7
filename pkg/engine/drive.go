package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/graph"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/otelhelper"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

// drive advances an execution until it reaches a terminal status, suspends on
// an approval gate, or is cancelled from outside. The execution record is
// reloaded before every step so that Cancel and Approve, which mutate the
// stored record, are observed between steps.
func (e *Engine) drive(ctx context.Context, definition *models.WorkflowDefinition, executionID string) {
	ctx, span := e.tracer.Start(ctx, "engine.drive",
		trace.WithAttributes(
			attribute.String(otelhelper.DefinitionIDKey, definition.ID),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		))
	defer span.End()

	logger := e.logger.With("definition_id", definition.ID, "execution_id", executionID)

	// The lock covers one reload-dispatch-save cycle at a time so Cancel and
	// Approve can interleave between steps.
	lock := e.lockFor(executionID)

	for {
		lock.Lock()
		stop := e.driveOne(ctx, definition, executionID, logger)
		lock.Unlock()

		if stop {
			return
		}
	}
}

// driveOne advances the execution by a single step transition. It returns
// true when the drive must stop.
func (e *Engine) driveOne(ctx context.Context, definition *models.WorkflowDefinition, executionID string, logger *slog.Logger) bool {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil || execution == nil {
		logger.ErrorContext(ctx, "Failed to reload execution, stopping drive", "error", err)

		return true
	}

	if execution.Status != models.ExecutionStatusActive {
		logger.InfoContext(ctx, "Execution no longer active, stopping drive", "status", string(execution.Status))

		return true
	}

	if e.executionTimedOut(definition, execution) {
		e.failExecution(ctx, execution, models.WorkflowError{
			Code:     "EXECUTION_TIMEOUT",
			Message:  fmt.Sprintf("execution exceeded %d minute budget", definition.Settings.TimeoutMinutes),
			Severity: models.SeverityCritical,
		})

		return true
	}

	if len(execution.NextSteps) == 0 {
		e.completeExecution(ctx, execution)

		return true
	}

	stepID := execution.NextSteps[0]

	step, found := definition.StepByID(stepID)
	if !found {
		e.failExecution(ctx, execution, models.WorkflowError{
			Code:     "UNRESOLVED_STEP",
			StepID:   stepID,
			Message:  fmt.Sprintf("step %q not found in definition", stepID),
			Severity: models.SeverityCritical,
		})

		return true
	}

	return e.advance(ctx, definition, execution, step, logger)
}

// advance runs one step and persists the resulting transition. It returns
// true when the drive must stop (terminal status, suspension, or save failure).
func (e *Engine) advance(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	execution *models.WorkflowExecution,
	step *models.WorkflowStep,
	logger *slog.Logger,
) bool {
	execution.CurrentStep = step.ID

	// START and END are structural; they complete without dispatch.
	if step.IsStart() || step.IsEnd() {
		e.completeStep(ctx, execution, step, nil, 0)

		if step.IsEnd() {
			e.completeExecution(ctx, execution)

			return true
		}

		execution.NextSteps = graph.NextSteps(definition.Steps, step.ID)

		return !e.save(ctx, execution, logger)
	}

	ctx, span := e.tracer.Start(ctx, "engine.step",
		trace.WithAttributes(
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.StepTypeKey, string(step.Type)),
		))
	defer span.End()

	handler, err := e.registry.CreateHandler(step.Type, step.Config)
	if err != nil {
		e.recordStepFailure(ctx, execution, step, models.StepStatusFailed, "HANDLER_CREATION_FAILED", err.Error(), 0)
		e.failExecution(ctx, execution, models.WorkflowError{
			Code:     "HANDLER_CREATION_FAILED",
			StepID:   step.ID,
			StepName: step.Name,
			Message:  err.Error(),
			Severity: models.SeverityCritical,
		})

		return true
	}

	stepCtx := ctx

	var cancel context.CancelFunc

	if definition.Settings.StepTimeoutSeconds > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(definition.Settings.StepTimeoutSeconds)*time.Second)
	}

	started := time.Now()
	output, err := handler.Execute(stepCtx, protocol.StepInput{
		Definition: definition,
		Execution:  execution,
		Step:       step,
		Variables:  execution.Variables,
	}, logger)
	durationMs := time.Since(started).Milliseconds()

	timedOut := stepCtx.Err() != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded)

	if cancel != nil {
		cancel()
	}

	switch {
	case err == nil:
		e.completeStep(ctx, execution, step, output, durationMs)

		execution.NextSteps = e.nextAfter(definition, step, output)

		return !e.save(ctx, execution, logger)

	case errors.Is(err, protocol.ErrAwaitingApproval):
		e.suspendForApproval(ctx, execution, step, logger)

		if window := autoApproveWindow(step.Config); window > 0 {
			e.scheduleAutoApprove(ctx, definition, execution.ID, step.ID, window)
		}

		return true

	default:
		return e.handleStepFailure(ctx, definition, execution, step, err, timedOut, durationMs, logger)
	}
}

// nextAfter computes the follow-up steps. Conditional branches pick the
// matching condition branch from the handler's reported outcome; every other
// step follows the dependency graph.
func (e *Engine) nextAfter(definition *models.WorkflowDefinition, step *models.WorkflowStep, output map[string]any) []string {
	if step.Type == models.StepTypeConditionalBranch && step.Conditions != nil {
		result, _ := output["condition_result"].(bool)

		if result {
			return append([]string(nil), step.Conditions.OnTrue...)
		}

		return append([]string(nil), step.Conditions.OnFalse...)
	}

	return graph.NextSteps(definition.Steps, step.ID)
}

// handleStepFailure records the failure and either halts the execution or,
// under the continue-on-error policy, keeps advancing past the failed step.
func (e *Engine) handleStepFailure(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	execution *models.WorkflowExecution,
	step *models.WorkflowStep,
	stepErr error,
	timedOut bool,
	durationMs int64,
	logger *slog.Logger,
) bool {
	code := "STEP_EXECUTION_FAILED"
	retryable := false
	status := models.StepStatusFailed

	var typed *protocol.StepError
	if errors.As(stepErr, &typed) {
		code = typed.Code
		retryable = typed.Retryable
	}

	if timedOut {
		code = "STEP_TIMEOUT"
		status = models.StepStatusTimeout
		retryable = true
	}

	// A rejected gate is a decision, not a fault: the execution ends
	// CANCELLED instead of ERROR.
	if code == "APPROVAL_REJECTED" {
		e.cancelOnRejection(ctx, execution, step, logger)

		return true
	}

	e.recordStepFailure(ctx, execution, step, status, code, stepErr.Error(), durationMs)

	logger.ErrorContext(ctx, "Step failed",
		"step_id", step.ID,
		"step_type", string(step.Type),
		"error_code", code,
		"timed_out", timedOut,
		"error", stepErr)

	if definition.Settings.OnError == models.OnErrorContinue && !timedOut {
		execution.RecordError(models.WorkflowError{
			Code:      code,
			StepID:    step.ID,
			StepName:  step.Name,
			Message:   stepErr.Error(),
			Severity:  models.SeverityWarning,
			Retryable: retryable,
		})

		execution.NextSteps = graph.NextSteps(definition.Steps, step.ID)

		return !e.save(ctx, execution, logger)
	}

	e.failExecution(ctx, execution, models.WorkflowError{
		Code:      code,
		StepID:    step.ID,
		StepName:  step.Name,
		Message:   stepErr.Error(),
		Severity:  models.SeverityError,
		Retryable: retryable,
	})

	return true
}

// cancelOnRejection ends the execution after an approval gate is rejected.
func (e *Engine) cancelOnRejection(ctx context.Context, execution *models.WorkflowExecution, step *models.WorkflowStep, logger *slog.Logger) {
	if execution.StepResults == nil {
		execution.StepResults = make(map[string]*models.StepResult)
	}

	execution.StepResults[step.ID] = &models.StepResult{
		StepID: step.ID,
		Status: models.StepStatusCancelled,
	}

	cancelledBy := "approver"
	if execution.PendingApproval != nil && execution.PendingApproval.DecidedBy != "" {
		cancelledBy = execution.PendingApproval.DecidedBy
	}

	execution.NextSteps = nil
	execution.Finish(models.ExecutionStatusCancelled, time.Now().UTC())

	e.publish(ctx, events.ExecutionCancelled{
		BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, execution),
		CancelledBy: cancelledBy,
		DurationMs:  execution.DurationMs,
	})

	logger.InfoContext(ctx, "Approval rejected, execution cancelled",
		"step_id", step.ID,
		"decided_by", cancelledBy)

	e.save(ctx, execution, logger)
}

// completeStep records a successful step and folds its output into the
// execution variables under the step id.
func (e *Engine) completeStep(ctx context.Context, execution *models.WorkflowExecution, step *models.WorkflowStep, output map[string]any, durationMs int64) {
	if execution.StepResults == nil {
		execution.StepResults = make(map[string]*models.StepResult)
	}

	execution.StepResults[step.ID] = &models.StepResult{
		StepID:   step.ID,
		Status:   models.StepStatusCompleted,
		Output:   output,
		Duration: durationMs,
	}

	execution.CompletedSteps = append(execution.CompletedSteps, step.ID)
	execution.Metrics.StepsCompleted++

	if output != nil {
		if execution.Variables == nil {
			execution.Variables = make(map[string]any)
		}

		execution.Variables[step.ID] = output
	}

	if execution.PendingApproval != nil && execution.PendingApproval.StepID == step.ID {
		execution.PendingApproval = nil
	}

	if !step.IsStart() && !step.IsEnd() {
		e.publish(ctx, events.StepCompleted{
			BaseEvent:  e.baseEvent(events.StepCompletedEvent, execution),
			StepID:     step.ID,
			StepName:   step.Name,
			Output:     output,
			DurationMs: durationMs,
		})
	}
}

func (e *Engine) recordStepFailure(
	ctx context.Context,
	execution *models.WorkflowExecution,
	step *models.WorkflowStep,
	status models.StepStatus,
	code, message string,
	durationMs int64,
) {
	if execution.StepResults == nil {
		execution.StepResults = make(map[string]*models.StepResult)
	}

	execution.StepResults[step.ID] = &models.StepResult{
		StepID:   step.ID,
		Status:   status,
		Error:    message,
		Duration: durationMs,
	}

	execution.FailedSteps = append(execution.FailedSteps, step.ID)
	execution.Metrics.StepsFailed++

	e.publish(ctx, events.StepFailed{
		BaseEvent: e.baseEvent(events.StepFailedEvent, execution),
		StepID:    step.ID,
		StepName:  step.Name,
		ErrorCode: code,
		Message:   message,
		TimedOut:  status == models.StepStatusTimeout,
	})
}

// suspendForApproval moves the execution into WAITING_APPROVAL and records the
// pending gate so a later Approve call can resume it.
func (e *Engine) suspendForApproval(ctx context.Context, execution *models.WorkflowExecution, step *models.WorkflowStep, logger *slog.Logger) {
	approvers := approversFromConfig(step.Config, execution.Variables)
	approvalType, _ := step.Config["approvalType"].(string)

	execution.Status = models.ExecutionStatusWaitingApproval

	if execution.StepResults == nil {
		execution.StepResults = make(map[string]*models.StepResult)
	}

	execution.StepResults[step.ID] = &models.StepResult{
		StepID: step.ID,
		Status: models.StepStatusWaitingApproval,
	}

	if execution.PendingApproval == nil || execution.PendingApproval.StepID != step.ID {
		execution.PendingApproval = &models.PendingApproval{
			StepID:       step.ID,
			Approvers:    approvers,
			ApprovalType: approvalType,
			RequestedAt:  time.Now().UTC(),
		}
	}

	e.publish(ctx, events.ExecutionPaused{
		BaseEvent: e.baseEvent(events.ExecutionPausedEvent, execution),
		StepID:    step.ID,
		Reason:    "awaiting approval",
	})

	logger.InfoContext(ctx, "Execution suspended for approval",
		"step_id", step.ID,
		"approvers", approvers)

	e.save(ctx, execution, logger)
}

// autoApproveWindow parses the gate's autoApproveAfter duration, if any.
func autoApproveWindow(config map[string]any) time.Duration {
	raw, _ := config["autoApproveAfter"].(string)
	if raw == "" {
		return 0
	}

	window, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}

	return window
}

// scheduleAutoApprove resumes a suspended gate once its approval window
// elapses with no recorded decision. The gate handler observes the elapsed
// window on re-dispatch and auto-approves.
func (e *Engine) scheduleAutoApprove(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	executionID, stepID string,
	window time.Duration,
) {
	bg := context.WithoutCancel(ctx)

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		time.Sleep(window)

		lock := e.lockFor(executionID)
		lock.Lock()

		execution, err := e.loadExecution(bg, executionID)
		if err != nil ||
			execution.Status != models.ExecutionStatusWaitingApproval ||
			execution.PendingApproval == nil ||
			execution.PendingApproval.StepID != stepID ||
			execution.PendingApproval.Decision != nil {
			lock.Unlock()

			return
		}

		execution.Status = models.ExecutionStatusActive

		err = e.persistence.ExecutionRepository().Save(bg, execution)
		if err != nil {
			lock.Unlock()
			e.logger.ErrorContext(bg, "Failed to persist auto-approve resume",
				"execution_id", executionID, "step_id", stepID, "error", err)

			return
		}

		lock.Unlock()

		e.publish(bg, events.ExecutionResumed{
			BaseEvent: e.baseEvent(events.ExecutionResumedEvent, execution),
			StepID:    stepID,
			ResumedBy: "system",
		})

		e.drive(bg, definition, executionID)
	}()
}

func approversFromConfig(config map[string]any, variables map[string]any) []string {
	raw, _ := config["approvers"].([]any)
	approvers := make([]string, 0, len(raw))

	for _, item := range raw {
		if s, ok := item.(string); ok {
			approvers = append(approvers, template.Render(s, variables))
		}
	}

	return approvers
}

func (e *Engine) completeExecution(ctx context.Context, execution *models.WorkflowExecution) {
	execution.CurrentStep = ""
	execution.NextSteps = nil
	execution.Finish(models.ExecutionStatusCompleted, time.Now().UTC())

	e.publish(ctx, events.ExecutionCompleted{
		BaseEvent:      e.baseEvent(events.ExecutionCompletedEvent, execution),
		DurationMs:     execution.DurationMs,
		CompletedSteps: len(execution.CompletedSteps),
	})

	e.save(ctx, execution, e.logger)

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID,
		"duration_ms", execution.DurationMs,
		"steps_completed", execution.Metrics.StepsCompleted)
}

func (e *Engine) failExecution(ctx context.Context, execution *models.WorkflowExecution, werr models.WorkflowError) {
	execution.RecordError(werr)
	execution.NextSteps = nil
	execution.Finish(models.ExecutionStatusError, time.Now().UTC())

	e.publish(ctx, events.ExecutionFailed{
		BaseEvent:    e.baseEvent(events.ExecutionFailedEvent, execution),
		FailedStepID: werr.StepID,
		ErrorCode:    werr.Code,
		Message:      werr.Message,
		DurationMs:   execution.DurationMs,
	})

	e.save(ctx, execution, e.logger)

	e.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID,
		"error_code", werr.Code,
		"step_id", werr.StepID)
}

// save persists the execution, logging rather than panicking on failure. It
// returns false when the save failed and the drive must stop.
func (e *Engine) save(ctx context.Context, execution *models.WorkflowExecution, logger *slog.Logger) bool {
	err := e.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution", "execution_id", execution.ID, "error", err)

		return false
	}

	return true
}

func (e *Engine) executionTimedOut(definition *models.WorkflowDefinition, execution *models.WorkflowExecution) bool {
	if definition.Settings.TimeoutMinutes <= 0 {
		return false
	}

	budget := time.Duration(definition.Settings.TimeoutMinutes) * time.Minute

	return time.Since(execution.StartTime) > budget
}
