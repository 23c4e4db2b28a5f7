package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowDefinition_StepByID(t *testing.T) {
	def := &WorkflowDefinition{
		Steps: []*WorkflowStep{
			{ID: "start", Type: StepTypeStart},
			{ID: "review", Type: StepTypeApprovalGate},
			{ID: "end", Type: StepTypeEnd},
		},
	}

	step, found := def.StepByID("review")
	require.True(t, found)
	assert.Equal(t, StepTypeApprovalGate, step.Type)

	_, found = def.StepByID("missing")
	assert.False(t, found)
}

func TestWorkflowDefinition_DeclaredVariable(t *testing.T) {
	def := &WorkflowDefinition{
		Variables: []WorkflowVariable{
			{Name: "client_name", Type: VariableTypeString, Required: true},
		},
	}

	v, found := def.DeclaredVariable("client_name")
	require.True(t, found)
	assert.True(t, v.Required)

	_, found = def.DeclaredVariable("other")
	assert.False(t, found)
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusActive.IsTerminal())
	assert.False(t, ExecutionStatusWaitingApproval.IsTerminal())
	assert.True(t, ExecutionStatusCompleted.IsTerminal())
	assert.True(t, ExecutionStatusCancelled.IsTerminal())
	assert.True(t, ExecutionStatusError.IsTerminal())
}

func TestWorkflowExecution_LastCompletedStep(t *testing.T) {
	exec := &WorkflowExecution{}

	_, ok := exec.LastCompletedStep()
	assert.False(t, ok)

	exec.CompletedSteps = []string{"start", "intake", "review"}

	last, ok := exec.LastCompletedStep()
	require.True(t, ok)
	assert.Equal(t, "review", last)
}

func TestWorkflowExecution_Finish(t *testing.T) {
	start := time.Now().UTC()
	exec := &WorkflowExecution{
		Status:    ExecutionStatusActive,
		StartTime: start,
	}

	end := start.Add(1500 * time.Millisecond)
	exec.Finish(ExecutionStatusCompleted, end)

	assert.Equal(t, ExecutionStatusCompleted, exec.Status)
	require.NotNil(t, exec.EndTime)
	assert.Equal(t, int64(1500), exec.DurationMs)
	assert.Equal(t, exec.DurationMs, exec.Metrics.DurationMs)
}

func TestWorkflowExecution_RecordError(t *testing.T) {
	exec := &WorkflowExecution{}

	exec.RecordError(WorkflowError{
		Code:     "STEP_EXECUTION",
		StepID:   "notify",
		Message:  "smtp unreachable",
		Severity: SeverityError,
	})

	require.Len(t, exec.Errors, 1)
	assert.False(t, exec.Errors[0].Timestamp.IsZero())
}

func TestWorkflowStep_Kinds(t *testing.T) {
	start := &WorkflowStep{ID: "s", Type: StepTypeStart}
	end := &WorkflowStep{ID: "e", Type: StepTypeEnd}
	action := &WorkflowStep{ID: "a", Type: StepTypeAPICall}

	assert.True(t, start.IsStart())
	assert.True(t, end.IsEnd())
	assert.False(t, action.IsStart())
	assert.False(t, action.IsEnd())
}
