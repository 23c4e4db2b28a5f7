package graph

import (
	"testing"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSteps() []*models.WorkflowStep {
	return []*models.WorkflowStep{
		{ID: "start", Type: models.StepTypeStart},
		{ID: "intake", Type: models.StepTypeTaskAssignment, Dependencies: []string{"start"}},
		{ID: "review", Type: models.StepTypeApprovalGate, Dependencies: []string{"intake"}},
		{ID: "end", Type: models.StepTypeEnd, Dependencies: []string{"review"}},
	}
}

func TestFindStart(t *testing.T) {
	id, found := FindStart(linearSteps())
	require.True(t, found)
	assert.Equal(t, "start", id)

	_, found = FindStart([]*models.WorkflowStep{{ID: "a", Type: models.StepTypeEnd}})
	assert.False(t, found)
}

func TestNextSteps_DirectDependents(t *testing.T) {
	steps := linearSteps()

	assert.Equal(t, []string{"intake"}, NextSteps(steps, "start"))
	assert.Equal(t, []string{"review"}, NextSteps(steps, "intake"))
	assert.Equal(t, []string{"end"}, NextSteps(steps, "review"))
}

func TestNextSteps_EndTerminates(t *testing.T) {
	assert.Empty(t, NextSteps(linearSteps(), "end"))
}

func TestNextSteps_ExplicitSuccessorsWin(t *testing.T) {
	steps := []*models.WorkflowStep{
		{ID: "start", Type: models.StepTypeStart},
		{ID: "branch", Type: models.StepTypeConditionalBranch, Dependencies: []string{"start"}, Successors: []string{"escalate"}},
		{ID: "routine", Type: models.StepTypeTaskAssignment, Dependencies: []string{"branch"}},
		{ID: "escalate", Type: models.StepTypeTaskAssignment},
		{ID: "end", Type: models.StepTypeEnd, Dependencies: []string{"routine", "escalate"}},
	}

	// Successors override the dependency graph entirely.
	assert.Equal(t, []string{"escalate"}, NextSteps(steps, "branch"))
}

func TestNextSteps_AnyPredecessorPromotes(t *testing.T) {
	steps := []*models.WorkflowStep{
		{ID: "start", Type: models.StepTypeStart},
		{ID: "a", Type: models.StepTypeAPICall, Dependencies: []string{"start"}},
		{ID: "b", Type: models.StepTypeAPICall, Dependencies: []string{"start"}},
		{ID: "merge", Type: models.StepTypeTaskAssignment, Dependencies: []string{"a", "b"}},
		{ID: "end", Type: models.StepTypeEnd, Dependencies: []string{"merge"}},
	}

	// A step with two predecessors becomes a candidate as soon as either
	// completes; partial dependency satisfaction is not tracked.
	assert.Equal(t, []string{"merge"}, NextSteps(steps, "a"))
	assert.Equal(t, []string{"merge"}, NextSteps(steps, "b"))
}

func TestNextSteps_UnknownStep(t *testing.T) {
	assert.Nil(t, NextSteps(linearSteps(), "ghost"))
}

func TestNextSteps_NoDependentsMeansDone(t *testing.T) {
	steps := []*models.WorkflowStep{
		{ID: "start", Type: models.StepTypeStart},
		{ID: "solo", Type: models.StepTypeAPICall, Dependencies: []string{"start"}},
	}

	assert.Empty(t, NextSteps(steps, "solo"))
}
