// Package taskassign implements the TASK_ASSIGNMENT step, creating a work
// item for a set of users or roles through an injected assigner capability.
package taskassign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

// Assignment is the work item handed to the assigner.
type Assignment struct {
	ID            string
	ExecutionID   string
	StepID        string
	Title         string
	Description   string
	AssignedTo    []string
	AssignedRoles []string
	DueAt         *time.Time
}

// Assigner records one assignment in an external task system.
type Assigner interface {
	Assign(ctx context.Context, assignment Assignment) error
}

// LogAssigner records assignments to the logger. It is the default assigner
// for deployments without a task system integration.
type LogAssigner struct {
	logger *slog.Logger
}

// NewLogAssigner creates a log-only assigner.
func NewLogAssigner(logger *slog.Logger) *LogAssigner {
	return &LogAssigner{logger: logger.With("module", "taskassign_log_assigner")}
}

// Assign logs the assignment and succeeds.
func (a *LogAssigner) Assign(ctx context.Context, assignment Assignment) error {
	a.logger.InfoContext(ctx, "Task assignment recorded to log",
		"assignment_id", assignment.ID,
		"title", assignment.Title,
		"assigned_to", assignment.AssignedTo,
		"assigned_roles", assignment.AssignedRoles)

	return nil
}

// Handler creates one task assignment per step execution.
type Handler struct {
	title       string
	description string
	dueInHours  float64
	assigner    Assigner
}

// Execute builds the assignment from the step's assignee lists and records it.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "taskassign_step")

	if len(input.Step.AssignedTo) == 0 && len(input.Step.AssignedRoles) == 0 {
		return nil, protocol.NewStepError("NO_ASSIGNEES", "task assignment step has no assigned users or roles", false)
	}

	title := template.Render(h.title, input.Variables)
	if title == "" {
		title = input.Step.Name
	}

	assignment := Assignment{
		ID:            uuid.New().String(),
		ExecutionID:   input.Execution.ID,
		StepID:        input.Step.ID,
		Title:         title,
		Description:   template.Render(h.description, input.Variables),
		AssignedTo:    input.Step.AssignedTo,
		AssignedRoles: input.Step.AssignedRoles,
	}

	if h.dueInHours > 0 {
		dueAt := time.Now().UTC().Add(time.Duration(h.dueInHours * float64(time.Hour)))
		assignment.DueAt = &dueAt
	}

	err := h.assigner.Assign(ctx, assignment)
	if err != nil {
		return nil, protocol.NewStepError("TASK_ASSIGNMENT_FAILED", fmt.Sprintf("failed to create task: %v", err), true)
	}

	logger.InfoContext(ctx, "Task assigned",
		"assignment_id", assignment.ID,
		"assigned_to", assignment.AssignedTo,
		"assigned_roles", assignment.AssignedRoles)

	output := map[string]any{
		"assignment_id":  assignment.ID,
		"title":          assignment.Title,
		"assigned_to":    assignment.AssignedTo,
		"assigned_roles": assignment.AssignedRoles,
	}

	if assignment.DueAt != nil {
		output["due_at"] = assignment.DueAt.Format(time.RFC3339)
	}

	return output, nil
}

// Factory creates task assignment handlers.
type Factory struct {
	assigner Assigner
}

// NewFactory creates the TASK_ASSIGNMENT factory.
func NewFactory(assigner Assigner) *Factory {
	return &Factory{assigner: assigner}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeTaskAssignment
}

// ConfigSchema returns the config schema for task assignment steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"description": {"type": "string"},
			"dueInHours": {"type": "number", "exclusiveMinimum": 0}
		}
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	title, _ := config["title"].(string)
	description, _ := config["description"].(string)
	dueInHours, _ := config["dueInHours"].(float64)

	return &Handler{
		title:       title,
		description: description,
		dueInHours:  dueInHours,
		assigner:    f.assigner,
	}, nil
}
