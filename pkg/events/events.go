// Package events defines the workflow execution lifecycle events published on
// the event bus. Events are observational facts about what the engine did;
// ExecutionRequested is the only event that requests work.
package events

import (
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
)

type EventType string

// Topic carries all execution lifecycle events.
const Topic = "caseflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	StepCompletedEvent      EventType = "execution.step.completed"
	StepFailedEvent         EventType = "execution.step.failed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
)

// BaseEvent carries the fields common to every lifecycle event.
type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	DefinitionID string         `json:"definition_id"`
	ExecutionID  string         `json:"execution_id"`
	WorkerID     string         `json:"worker_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ExecutionRequested asks a worker to start an execution for a definition.
type ExecutionRequested struct {
	BaseEvent

	TriggerType models.TriggerType `json:"trigger_type"`
	Payload     map[string]any     `json:"payload,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

// ExecutionStarted marks the transition into the ACTIVE status.
type ExecutionStarted struct {
	BaseEvent

	WorkflowName string `json:"workflow_name"`
	StartStepID  string `json:"start_step_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// StepCompleted reports one step finishing successfully.
type StepCompleted struct {
	BaseEvent

	StepID     string         `json:"step_id"`
	StepName   string         `json:"step_name"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

// StepFailed reports one step failing or timing out.
type StepFailed struct {
	BaseEvent

	StepID    string `json:"step_id"`
	StepName  string `json:"step_name"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	TimedOut  bool   `json:"timed_out,omitempty"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

// ExecutionCompleted marks a successful terminal transition.
type ExecutionCompleted struct {
	BaseEvent

	DurationMs     int64 `json:"duration_ms"`
	CompletedSteps int   `json:"completed_steps"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed marks the ERROR terminal transition.
type ExecutionFailed struct {
	BaseEvent

	FailedStepID string `json:"failed_step_id,omitempty"`
	ErrorCode    string `json:"error_code"`
	Message      string `json:"message"`
	DurationMs   int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ExecutionCancelled marks a user-requested cancellation.
type ExecutionCancelled struct {
	BaseEvent

	CancelledBy string `json:"cancelled_by,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// ExecutionPaused marks a suspension, including approval gate waits.
type ExecutionPaused struct {
	BaseEvent

	StepID string `json:"step_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

// ExecutionResumed marks a suspended execution continuing.
type ExecutionResumed struct {
	BaseEvent

	StepID    string `json:"step_id,omitempty"`
	ResumedBy string `json:"resumed_by,omitempty"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}
