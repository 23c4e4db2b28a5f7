// Package approval implements the APPROVAL_GATE step. The gate suspends the
// execution until a decision is recorded, or approves automatically after a
// configured grace period when one is set.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

// Approval type determines how many approvers must accept.
const (
	TypeSingle    = "SINGLE"
	TypeMultiple  = "MULTIPLE"
	TypeUnanimous = "UNANIMOUS"
)

// Handler gates execution progress on an approval decision.
type Handler struct {
	approvers        []string
	approvalType     string
	autoApproveAfter time.Duration
}

// Execute checks for a recorded decision on this step. Without one the gate
// either auto-approves (when autoApproveAfter has elapsed) or suspends the
// execution by returning protocol.ErrAwaitingApproval.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "approval_step")

	approvers := make([]string, len(h.approvers))
	for i, a := range h.approvers {
		approvers[i] = template.Render(a, input.Variables)
	}

	pending := input.Execution.PendingApproval
	if pending != nil && pending.StepID == input.Step.ID && pending.Decision != nil {
		decision := *pending.Decision
		logger.InfoContext(ctx, "Approval decision recorded", "step_id", input.Step.ID, "approved", decision)

		if !decision {
			return nil, protocol.NewStepError("APPROVAL_REJECTED", "approval was rejected", false)
		}

		return map[string]any{
			"approved":      true,
			"approved_by":   pending.Approved,
			"approval_type": h.approvalType,
			"approvers":     approvers,
		}, nil
	}

	if h.autoApproveAfter > 0 && pending != nil && pending.StepID == input.Step.ID {
		if time.Since(pending.RequestedAt) >= h.autoApproveAfter {
			logger.InfoContext(ctx, "Approval window elapsed, auto-approving", "step_id", input.Step.ID)

			return map[string]any{
				"approved":      true,
				"auto_approved": true,
				"approval_type": h.approvalType,
				"approvers":     approvers,
			}, nil
		}
	}

	return nil, fmt.Errorf("approval required from %v: %w", approvers, protocol.ErrAwaitingApproval)
}

// Approvers returns the rendered approver list for a step input. The driver
// uses it to populate the pending approval record when the gate suspends.
func (h *Handler) Approvers(variables map[string]any) []string {
	approvers := make([]string, len(h.approvers))
	for i, a := range h.approvers {
		approvers[i] = template.Render(a, variables)
	}

	return approvers
}

// ApprovalType returns the configured decision mode.
func (h *Handler) ApprovalType() string {
	return h.approvalType
}

// Factory creates approval gate handlers.
type Factory struct{}

// NewFactory creates the APPROVAL_GATE factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeApprovalGate
}

// ConfigSchema returns the config schema for approval gates.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"approvers": {"type": "array", "items": {"type": "string"}, "minItems": 1},
			"approvalType": {"type": "string", "enum": ["SINGLE", "MULTIPLE", "UNANIMOUS"]},
			"autoApproveAfter": {"type": "string"}
		},
		"required": ["approvers"]
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	rawApprovers, ok := config["approvers"].([]any)
	if !ok || len(rawApprovers) == 0 {
		return nil, fmt.Errorf("invalid 'approvers' in configuration")
	}

	approvers := make([]string, 0, len(rawApprovers))

	for _, item := range rawApprovers {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("invalid approver %v in configuration", item)
		}

		approvers = append(approvers, s)
	}

	approvalType := TypeSingle
	if v, ok := config["approvalType"].(string); ok && v != "" {
		approvalType = v
	}

	var autoApproveAfter time.Duration

	if v, ok := config["autoApproveAfter"].(string); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid 'autoApproveAfter' in configuration: %w", err)
		}

		autoApproveAfter = parsed
	}

	return &Handler{
		approvers:        approvers,
		approvalType:     approvalType,
		autoApproveAfter: autoApproveAfter,
	}, nil
}
