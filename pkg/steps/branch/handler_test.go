package branch

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/expression"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func branchInput(expr string, variables map[string]any) protocol.StepInput {
	var conditions *models.StepConditions
	if expr != "" {
		conditions = &models.StepConditions{Expression: expr, OnTrue: []string{"yes"}, OnFalse: []string{"no"}}
	}

	return protocol.StepInput{
		Execution: &models.WorkflowExecution{},
		Step: &models.WorkflowStep{
			ID:         "decide",
			Type:       models.StepTypeConditionalBranch,
			Conditions: conditions,
		},
		Variables: variables,
	}
}

func TestBranchEvaluatesCondition(t *testing.T) {
	factory := NewFactory(expression.NewEvaluator())

	handler, err := factory.Create(nil)
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), branchInput("amount > 1000", map[string]any{"amount": 2500}), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, true, output["condition_result"])

	output, err = handler.Execute(t.Context(), branchInput("amount > 1000", map[string]any{"amount": 10}), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, false, output["condition_result"])
}

func TestBranchMissingConditionFails(t *testing.T) {
	factory := NewFactory(expression.NewEvaluator())

	handler, err := factory.Create(nil)
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), branchInput("", nil), slog.Default())
	require.Error(t, err)

	var stepErr *protocol.StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "MISSING_CONDITION", stepErr.Code)
}

func TestBranchNonBooleanConditionFails(t *testing.T) {
	factory := NewFactory(expression.NewEvaluator())

	handler, err := factory.Create(nil)
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), branchInput("amount + 1", map[string]any{"amount": 1}), slog.Default())
	require.Error(t, err)

	var stepErr *protocol.StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "CONDITION_EVALUATION_FAILED", stepErr.Code)
}
