package taskassign

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

type captureAssigner struct {
	assignment Assignment
	err        error
}

func (a *captureAssigner) Assign(_ context.Context, assignment Assignment) error {
	a.assignment = assignment

	return a.err
}

func TestTaskAssignCreatesAssignment(t *testing.T) {
	assigner := &captureAssigner{}
	factory := NewFactory(assigner)

	handler, err := factory.Create(map[string]any{
		"title":       "Review case {{case_id}}",
		"description": "Check documents",
		"dueInHours":  24.0,
	})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Execution: &models.WorkflowExecution{ID: "exec-1"},
		Step: &models.WorkflowStep{
			ID:            "assign",
			Name:          "Assign reviewer",
			AssignedTo:    []string{"user-7"},
			AssignedRoles: []string{"reviewer"},
		},
		Variables: map[string]any{"case_id": "C-3"},
	}, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "Review case C-3", assigner.assignment.Title)
	assert.Equal(t, "exec-1", assigner.assignment.ExecutionID)
	assert.Equal(t, []string{"user-7"}, assigner.assignment.AssignedTo)
	require.NotNil(t, assigner.assignment.DueAt)
	assert.NotEmpty(t, output["assignment_id"])
	assert.NotEmpty(t, output["due_at"])
}

func TestTaskAssignFallsBackToStepName(t *testing.T) {
	assigner := &captureAssigner{}
	factory := NewFactory(assigner)

	handler, err := factory.Create(map[string]any{})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), protocol.StepInput{
		Execution: &models.WorkflowExecution{ID: "exec-2"},
		Step: &models.WorkflowStep{
			ID:         "assign",
			Name:       "Manual check",
			AssignedTo: []string{"user-1"},
		},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "Manual check", assigner.assignment.Title)
}

func TestTaskAssignRequiresAssignees(t *testing.T) {
	factory := NewFactory(&captureAssigner{})

	handler, err := factory.Create(map[string]any{})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), protocol.StepInput{
		Execution: &models.WorkflowExecution{ID: "exec-3"},
		Step:      &models.WorkflowStep{ID: "assign"},
	}, slog.Default())
	require.Error(t, err)

	var stepErr *protocol.StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "NO_ASSIGNEES", stepErr.Code)
}
