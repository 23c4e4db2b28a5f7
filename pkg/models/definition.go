// Package models defines the core domain models for workflow automation.
package models

import "time"

// WorkflowType classifies the business process a definition automates.
type WorkflowType string

const (
	WorkflowTypeCaseIntake       WorkflowType = "case_intake"
	WorkflowTypeDocumentApproval WorkflowType = "document_approval"
	WorkflowTypeContractReview   WorkflowType = "contract_review"
	WorkflowTypeOnboarding       WorkflowType = "onboarding"
	WorkflowTypeCustom           WorkflowType = "custom"
)

// OnErrorPolicy controls what the driver does when a step fails.
type OnErrorPolicy string

const (
	OnErrorHalt     OnErrorPolicy = "halt"     // Stop the execution and surface the error
	OnErrorContinue OnErrorPolicy = "continue" // Record the error and keep advancing
)

// ExecutionSettings holds the per-definition execution tuning knobs.
type ExecutionSettings struct {
	TimeoutMinutes          int           `json:"timeout_minutes"            validate:"min=0"`
	StepTimeoutSeconds      int           `json:"step_timeout_seconds"       validate:"min=0"`
	MaxRetries              int           `json:"max_retries"                validate:"min=0"`
	RetryDelaySeconds       int           `json:"retry_delay_seconds"        validate:"min=0"`
	OnError                 OnErrorPolicy `json:"on_error"`
	MaxConcurrentExecutions int           `json:"max_concurrent_executions"  validate:"min=0"`
}

// Permissions describes who may view, execute, and edit a definition.
type Permissions struct {
	ViewRoles    []string `json:"view_roles,omitempty"`
	ExecuteRoles []string `json:"execute_roles,omitempty"`
	EditRoles    []string `json:"edit_roles,omitempty"`
}

// VariableType tags a declared workflow variable.
type VariableType string

const (
	VariableTypeString  VariableType = "string"
	VariableTypeNumber  VariableType = "number"
	VariableTypeBoolean VariableType = "boolean"
	VariableTypeDate    VariableType = "date"
	VariableTypeObject  VariableType = "object"
	VariableTypeList    VariableType = "list"
)

// WorkflowVariable declares a named input the definition expects.
type WorkflowVariable struct {
	Name         string       `json:"name"                    validate:"required"`
	Type         VariableType `json:"type"                    validate:"required"`
	Required     bool         `json:"required"`
	DefaultValue any          `json:"default_value,omitempty"`
	Validation   string       `json:"validation,omitempty"` // Optional expression checked at request time
}

// TriggerType is the closed vocabulary of causes that may start an execution.
// The engine never listens for these itself; an external trigger source maps an
// observed cause to an execute call.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeSystem   TriggerType = "system"
)

// WorkflowTrigger declares a cause that may initiate executions of a definition.
type WorkflowTrigger struct {
	ID     string         `json:"id"     validate:"required"`
	Type   TriggerType    `json:"type"   validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// WorkflowDefinition is a reusable workflow template: the step graph plus the
// metadata needed to validate, execute, and authorize runs of it.
type WorkflowDefinition struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"        validate:"required,min=3"`
	Description string             `json:"description"`
	Version     string             `json:"version"`
	Type        WorkflowType       `json:"type"        validate:"required"`
	Category    string             `json:"category,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Steps       []*WorkflowStep    `json:"steps"`
	Variables   []WorkflowVariable `json:"variables,omitempty"`
	Triggers    []WorkflowTrigger  `json:"triggers,omitempty"`
	Settings    ExecutionSettings  `json:"settings"`
	Permissions Permissions        `json:"permissions"`
	IsActive    bool               `json:"is_active"`
	IsTemplate  bool               `json:"is_template"`
	IsPublic    bool               `json:"is_public"`
	UsageCount  int64              `json:"usage_count"`
	Owner       string             `json:"owner"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// StepByID returns the step with the given id, if present.
func (d *WorkflowDefinition) StepByID(stepID string) (*WorkflowStep, bool) {
	for _, step := range d.Steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}

// DeclaredVariable returns the variable declaration with the given name.
func (d *WorkflowDefinition) DeclaredVariable(name string) (WorkflowVariable, bool) {
	for _, v := range d.Variables {
		if v.Name == name {
			return v, true
		}
	}

	return WorkflowVariable{}, false
}
