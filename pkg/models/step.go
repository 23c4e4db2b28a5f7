package models

// StepType is the closed set of step kinds a definition may use.
type StepType string

const (
	StepTypeStart              StepType = "START"
	StepTypeEnd                StepType = "END"
	StepTypeDocumentGeneration StepType = "DOCUMENT_GENERATION"
	StepTypeEmailNotification  StepType = "EMAIL_NOTIFICATION"
	StepTypeSMSNotification    StepType = "SMS_NOTIFICATION"
	StepTypeSlackNotification  StepType = "SLACK_NOTIFICATION"
	StepTypeApprovalGate       StepType = "APPROVAL_GATE"
	StepTypeConditionalBranch  StepType = "CONDITIONAL_BRANCH"
	StepTypeAPICall            StepType = "API_CALL"
	StepTypeDelay              StepType = "DELAY"
	StepTypeTaskAssignment     StepType = "TASK_ASSIGNMENT"
	StepTypeDataValidation     StepType = "DATA_VALIDATION"
	StepTypeCustom             StepType = "CUSTOM"

	// Declared in the vocabulary but rejected by the validator: the driver
	// advances one step at a time and does not fan out branches.
	StepTypeParallelSplit StepType = "PARALLEL_SPLIT"
	StepTypeParallelJoin  StepType = "PARALLEL_JOIN"
)

// StepConditions attaches a branch expression to a step. The expression is
// evaluated by the sandboxed expression engine; OnTrue/OnFalse name the step
// ids to activate for each outcome.
type StepConditions struct {
	Expression string   `json:"expression" validate:"required"`
	OnTrue     []string `json:"on_true,omitempty"`
	OnFalse    []string `json:"on_false,omitempty"`
}

// WorkflowStep is a node in a definition's step graph. It is owned by its
// definition and has no independent lifecycle.
type WorkflowStep struct {
	ID            string          `json:"id"             validate:"required"`
	Name          string          `json:"name"           validate:"required"`
	Type          StepType        `json:"type"           validate:"required"`
	Description   string          `json:"description,omitempty"`
	Dependencies  []string        `json:"dependencies,omitempty"` // Predecessor step ids
	Successors    []string        `json:"successors,omitempty"`   // Explicit next-step overrides
	Conditions    *StepConditions `json:"conditions,omitempty"`
	Config        map[string]any  `json:"config,omitempty"`
	AssignedTo    []string        `json:"assigned_to,omitempty"`
	AssignedRoles []string        `json:"assigned_roles,omitempty"`
	MaxRetries    int             `json:"max_retries"`
}

// IsStart reports whether this step is a START step.
func (s *WorkflowStep) IsStart() bool { return s.Type == StepTypeStart }

// IsEnd reports whether this step is an END step.
func (s *WorkflowStep) IsEnd() bool { return s.Type == StepTypeEnd }

// StepStatus defines the possible states of a single step execution.
type StepStatus string

const (
	StepStatusPending         StepStatus = "pending"
	StepStatusRunning         StepStatus = "running"
	StepStatusCompleted       StepStatus = "completed"
	StepStatusFailed          StepStatus = "failed"
	StepStatusSkipped         StepStatus = "skipped"
	StepStatusCancelled       StepStatus = "cancelled"
	StepStatusWaitingApproval StepStatus = "waiting_approval"
	StepStatusTimeout         StepStatus = "timeout"
)

// StepResult is the structured outcome of one step dispatch.
type StepResult struct {
	StepID   string         `json:"step_id"`
	Status   StepStatus     `json:"status"`
	Output   map[string]any `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration int64          `json:"duration_ms"`
}
