package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusActive          ExecutionStatus = "active"
	ExecutionStatusWaitingApproval ExecutionStatus = "waiting_approval"
	ExecutionStatusCompleted       ExecutionStatus = "completed"
	ExecutionStatusCancelled       ExecutionStatus = "cancelled"
	ExecutionStatusError           ExecutionStatus = "error"
)

// IsTerminal reports whether the status admits no further transitions.
// ERROR is terminal unless the caller explicitly retries.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusCancelled || s == ExecutionStatusError
}

// ErrorSeverity grades a recorded workflow error.
type ErrorSeverity string

const (
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// WorkflowError is a structured error recorded on an execution. Only the
// machine-readable code and human-readable message cross the external
// boundary; internal stack detail never does.
type WorkflowError struct {
	Code      string        `json:"code"`
	StepID    string        `json:"step_id,omitempty"`
	StepName  string        `json:"step_name,omitempty"`
	Message   string        `json:"message"`
	Severity  ErrorSeverity `json:"severity"`
	Retryable bool          `json:"retryable"`
	Timestamp time.Time     `json:"timestamp"`
}

// ExecutionContext carries the caller identity and correlation ids for one
// execution. It is embedded in the execution and never persisted on its own.
type ExecutionContext struct {
	UserID         string   `json:"user_id"`
	UserRoles      []string `json:"user_roles,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	TeamID         string   `json:"team_id,omitempty"`
	CaseID         string   `json:"case_id,omitempty"`
	ClientID       string   `json:"client_id,omitempty"`
	RequestID      string   `json:"request_id,omitempty"`
}

// ExecutionMetrics accumulates counters and durations while an execution runs.
type ExecutionMetrics struct {
	StepsTotal     int   `json:"steps_total"`
	StepsCompleted int   `json:"steps_completed"`
	StepsFailed    int   `json:"steps_failed"`
	StepsSkipped   int   `json:"steps_skipped"`
	DurationMs     int64 `json:"duration_ms"`
}

// PendingApproval records a suspended approval gate awaiting an external
// decision. Approved accumulates the approvers who accepted; Decision is set
// once the gate is resolved either way.
type PendingApproval struct {
	StepID       string     `json:"step_id"`
	Approvers    []string   `json:"approvers"`
	ApprovalType string     `json:"approval_type"`
	Approved     []string   `json:"approved,omitempty"`
	Decision     *bool      `json:"decision,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

// WorkflowExecution is one run of a definition. It is created at
// execution-request time, mutated only by the execution driver, and becomes
// immutable once Status reaches a terminal value.
type WorkflowExecution struct {
	ID                string                 `json:"id"`
	DefinitionID      string                 `json:"definition_id"`
	DefinitionName    string                 `json:"definition_name"`
	DefinitionVersion string                 `json:"definition_version"`
	TriggerType       TriggerType            `json:"trigger_type"`
	TriggerPayload    map[string]any         `json:"trigger_payload,omitempty"`
	Status            ExecutionStatus        `json:"status"`
	CurrentStep       string                 `json:"current_step,omitempty"`
	NextSteps         []string               `json:"next_steps,omitempty"`
	CompletedSteps    []string               `json:"completed_steps,omitempty"`
	FailedSteps       []string               `json:"failed_steps,omitempty"`
	SkippedSteps      []string               `json:"skipped_steps,omitempty"`
	Variables         map[string]any         `json:"variables,omitempty"`
	StepResults       map[string]*StepResult `json:"step_results,omitempty"`
	Context           ExecutionContext       `json:"context"`
	Metrics           ExecutionMetrics       `json:"metrics"`
	Errors            []WorkflowError        `json:"errors,omitempty"`
	Warnings          []string               `json:"warnings,omitempty"`
	PendingApproval   *PendingApproval       `json:"pending_approval,omitempty"`
	StartTime         time.Time              `json:"start_time"`
	EndTime           *time.Time             `json:"end_time,omitempty"`
	DurationMs        int64                  `json:"duration_ms"`

	// Version supports optimistic locking in persisted stores. It is bumped
	// on every save; a stale save must fail rather than overwrite.
	Version int64 `json:"version"`
}

// LastCompletedStep returns the most recently completed step id, if any.
func (e *WorkflowExecution) LastCompletedStep() (string, bool) {
	if len(e.CompletedSteps) == 0 {
		return "", false
	}

	return e.CompletedSteps[len(e.CompletedSteps)-1], true
}

// RecordError appends a structured error to the execution.
func (e *WorkflowExecution) RecordError(werr WorkflowError) {
	if werr.Timestamp.IsZero() {
		werr.Timestamp = time.Now().UTC()
	}

	e.Errors = append(e.Errors, werr)
}

// Finish stamps the end time and duration for a terminal transition.
func (e *WorkflowExecution) Finish(status ExecutionStatus, at time.Time) {
	e.Status = status
	e.EndTime = &at
	e.DurationMs = at.Sub(e.StartTime).Milliseconds()
	e.Metrics.DurationMs = e.DurationMs
}
