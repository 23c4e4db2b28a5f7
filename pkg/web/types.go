// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/caseflowhq/caseflow/pkg/models"

// CreateDefinitionRequest represents the request body for creating a new
// workflow definition. The full definition is validated before it is stored,
// so the request carries the complete document.
type CreateDefinitionRequest struct {
	Name        string                    `json:"name"                  validate:"required,min=3"`
	Description string                    `json:"description"`
	Version     string                    `json:"version"`
	Type        models.WorkflowType       `json:"type"                  validate:"required"`
	Category    string                    `json:"category,omitempty"`
	Tags        []string                  `json:"tags,omitempty"`
	Steps       []*models.WorkflowStep    `json:"steps"                 validate:"required,min=1"`
	Variables   []models.WorkflowVariable `json:"variables,omitempty"`
	Triggers    []models.WorkflowTrigger  `json:"triggers,omitempty"`
	Settings    models.ExecutionSettings  `json:"settings"`
	Permissions models.Permissions        `json:"permissions"`
	IsActive    bool                      `json:"is_active"`
	IsTemplate  bool                      `json:"is_template"`
	IsPublic    bool                      `json:"is_public"`
	Owner       string                    `json:"owner"                 validate:"required"`
}

// ToDefinition converts the request into a definition model.
func (r *CreateDefinitionRequest) ToDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		Name:        r.Name,
		Description: r.Description,
		Version:     r.Version,
		Type:        r.Type,
		Category:    r.Category,
		Tags:        r.Tags,
		Steps:       r.Steps,
		Variables:   r.Variables,
		Triggers:    r.Triggers,
		Settings:    r.Settings,
		Permissions: r.Permissions,
		IsActive:    r.IsActive,
		IsTemplate:  r.IsTemplate,
		IsPublic:    r.IsPublic,
		Owner:       r.Owner,
	}
}

// ExecuteWorkflowRequest represents the request body for starting an
// execution of a definition.
type ExecuteWorkflowRequest struct {
	TriggerType models.TriggerType      `json:"trigger_type"`
	Variables   map[string]any          `json:"variables,omitempty"`
	Context     models.ExecutionContext `json:"context"`
}

// ExecuteWorkflowResponse is returned after the execution has been created
// and scheduled. The run continues asynchronously.
type ExecuteWorkflowResponse struct {
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	NextSteps   []string               `json:"next_steps,omitempty"`
}

// CancelExecutionRequest represents the request body for cancelling an
// active execution.
type CancelExecutionRequest struct {
	CancelledBy string `json:"cancelled_by" validate:"required"`
	Reason      string `json:"reason,omitempty"`
}

// ApprovalRequest represents one approver's decision on a suspended
// approval gate.
type ApprovalRequest struct {
	Approver string `json:"approver" validate:"required"`
	Approved bool   `json:"approved"`
	Comment  string `json:"comment,omitempty"`
}
