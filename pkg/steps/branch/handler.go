// Package branch implements the CONDITIONAL_BRANCH step. The step evaluates
// its condition expression against the execution variables and reports the
// boolean outcome; the driver then follows the matching condition branch.
package branch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/expression"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Handler evaluates a branch condition.
type Handler struct {
	evaluator *expression.Evaluator
}

// Execute evaluates the step's condition expression. The result is exposed as
// the "condition_result" output.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "branch_step")

	if input.Step.Conditions == nil || input.Step.Conditions.Expression == "" {
		return nil, protocol.NewStepError("MISSING_CONDITION", "conditional branch step has no condition expression", false)
	}

	result, err := h.evaluator.EvaluateBool(ctx, input.Step.Conditions.Expression, input.Variables)
	if err != nil {
		return nil, protocol.NewStepError("CONDITION_EVALUATION_FAILED", fmt.Sprintf("failed to evaluate condition: %v", err), false)
	}

	logger.InfoContext(ctx, "Branch condition evaluated",
		"step_id", input.Step.ID,
		"expression", input.Step.Conditions.Expression,
		"result", result)

	return map[string]any{
		"condition_result": result,
		"expression":       input.Step.Conditions.Expression,
	}, nil
}

// Factory creates conditional branch handlers sharing one expression cache.
type Factory struct {
	evaluator *expression.Evaluator
}

// NewFactory creates the CONDITIONAL_BRANCH factory.
func NewFactory(evaluator *expression.Evaluator) *Factory {
	return &Factory{evaluator: evaluator}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeConditionalBranch
}

// ConfigSchema returns the config schema for branch steps. The condition
// lives on the step's conditions block, so the config carries nothing.
func (f *Factory) ConfigSchema() string {
	return `{"type": "object"}`
}

// Create builds a handler.
func (f *Factory) Create(_ map[string]any) (protocol.StepHandler, error) {
	return &Handler{evaluator: f.evaluator}, nil
}
