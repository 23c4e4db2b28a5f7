package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/channels/gochannel"
	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/expression"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/persistence/file"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/registry"
	"github.com/caseflowhq/caseflow/pkg/steps/approval"
	"github.com/caseflowhq/caseflow/pkg/steps/branch"
	"github.com/caseflowhq/caseflow/pkg/steps/custom"
)

func newTestEngine(t *testing.T, funcs map[string]custom.Func) (*Engine, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())

	t.Cleanup(func() {
		_ = persist.Close(context.Background())
	})

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	logger := slog.Default()
	reg := registry.NewRegistry(logger)
	reg.RegisterHandler(approval.NewFactory())
	reg.RegisterHandler(branch.NewFactory(expression.NewEvaluator()))
	reg.RegisterFallback(custom.NewFactory(funcs))

	return NewEngine(logger, persist, reg, bus, "worker-test"), persist
}

func saveDefinition(t *testing.T, persist persistence.Persistence, definition *models.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, persist.DefinitionRepository().Save(t.Context(), definition))
}

func linearDefinition(steps ...models.WorkflowStep) *models.WorkflowDefinition {
	all := []*models.WorkflowStep{{ID: "start", Name: "Start", Type: models.StepTypeStart}}
	previous := "start"

	for _, step := range steps {
		step.Dependencies = []string{previous}
		all = append(all, &step)
		previous = step.ID
	}

	all = append(all, &models.WorkflowStep{
		ID:           "end",
		Name:         "End",
		Type:         models.StepTypeEnd,
		Dependencies: []string{previous},
	})

	return &models.WorkflowDefinition{
		ID:       "def-1",
		Name:     "Test workflow",
		Version:  "1.0",
		IsActive: true,
		Steps:    all,
	}
}

func TestExecuteRunsLinearWorkflowToCompletion(t *testing.T) {
	engine, persist := newTestEngine(t, map[string]custom.Func{
		"enrich": func(_ context.Context, input protocol.StepInput, _ map[string]any) (map[string]any, error) {
			amount, _ := input.Variables["amount"].(float64)

			return map[string]any{"doubled": amount * 2}, nil
		},
	})

	definition := linearDefinition(models.WorkflowStep{
		ID:     "enrich",
		Name:   "Enrich",
		Type:   models.StepTypeCustom,
		Config: map[string]any{"handler": "enrich"},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{
		DefinitionID: "def-1",
		TriggerType:  models.TriggerTypeManual,
		Payload:      map[string]any{"amount": 21.0},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusActive, result.Status)
	assert.Equal(t, []string{"start"}, result.NextSteps)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"start", "enrich", "end"}, execution.CompletedSteps)
	require.NotNil(t, execution.EndTime)

	output, ok := execution.Variables["enrich"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42.0, output["doubled"])
}

func TestExecuteRejectsMissingAndInactiveDefinitions(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	_, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "nope"})
	require.ErrorIs(t, err, ErrDefinitionNotFound)

	definition := linearDefinition()
	definition.IsActive = false
	saveDefinition(t, persist, definition)

	_, err = engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.ErrorIs(t, err, ErrDefinitionInactive)
}

func TestExecuteValidatesRequiredVariables(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition()
	definition.Variables = []models.WorkflowVariable{
		{Name: "case_id", Type: models.VariableTypeString, Required: true},
		{Name: "amount", Type: models.VariableTypeNumber, Validation: "value > 0"},
	}
	saveDefinition(t, persist, definition)

	_, err := engine.Execute(t.Context(), ExecuteRequest{
		DefinitionID: "def-1",
		Payload:      map[string]any{"amount": -5.0},
	})
	require.Error(t, err)
	require.True(t, IsVariableError(err))
	assert.Contains(t, err.Error(), "case_id")
	assert.Contains(t, err.Error(), "amount")
}

func TestExecuteAppliesVariableDefaults(t *testing.T) {
	engine, persist := newTestEngine(t, map[string]custom.Func{
		"echo": func(_ context.Context, input protocol.StepInput, _ map[string]any) (map[string]any, error) {
			return map[string]any{"priority": input.Variables["priority"]}, nil
		},
	})

	definition := linearDefinition(models.WorkflowStep{
		ID:     "echo",
		Name:   "Echo",
		Type:   models.StepTypeCustom,
		Config: map[string]any{"handler": "echo"},
	})
	definition.Variables = []models.WorkflowVariable{
		{Name: "priority", Type: models.VariableTypeString, DefaultValue: "normal"},
	}
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	output, ok := execution.Variables["echo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "normal", output["priority"])
}

func TestConditionalBranchFollowsMatchingPath(t *testing.T) {
	engine, persist := newTestEngine(t, map[string]custom.Func{
		"noop": func(_ context.Context, _ protocol.StepInput, _ map[string]any) (map[string]any, error) {
			return map[string]any{"done": true}, nil
		},
	})

	definition := &models.WorkflowDefinition{
		ID:       "def-1",
		Name:     "Branching workflow",
		Version:  "1.0",
		IsActive: true,
		Steps: []*models.WorkflowStep{
			{ID: "start", Name: "Start", Type: models.StepTypeStart, Successors: []string{"decide"}},
			{
				ID:   "decide",
				Name: "Decide",
				Type: models.StepTypeConditionalBranch,
				Conditions: &models.StepConditions{
					Expression: "amount > 1000",
					OnTrue:     []string{"escalate"},
					OnFalse:    []string{"approve_small"},
				},
			},
			{ID: "escalate", Name: "Escalate", Type: models.StepTypeCustom, Config: map[string]any{"handler": "noop"}, Successors: []string{"end"}},
			{ID: "approve_small", Name: "Approve small", Type: models.StepTypeCustom, Config: map[string]any{"handler": "noop"}, Successors: []string{"end"}},
			{ID: "end", Name: "End", Type: models.StepTypeEnd},
		},
	}
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{
		DefinitionID: "def-1",
		Payload:      map[string]any{"amount": 2500.0},
	})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Contains(t, execution.CompletedSteps, "escalate")
	assert.NotContains(t, execution.CompletedSteps, "approve_small")
}

func TestStepFailureFailsExecutionAndRetryResumes(t *testing.T) {
	shouldFail := true

	engine, persist := newTestEngine(t, map[string]custom.Func{
		"flaky": func(_ context.Context, _ protocol.StepInput, _ map[string]any) (map[string]any, error) {
			if shouldFail {
				return nil, protocol.NewStepError("UPSTREAM_DOWN", "upstream unavailable", true)
			}

			return map[string]any{"ok": true}, nil
		},
	})

	definition := linearDefinition(models.WorkflowStep{
		ID:     "flaky",
		Name:   "Flaky",
		Type:   models.StepTypeCustom,
		Config: map[string]any{"handler": "flaky"},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusError, execution.Status)
	require.NotEmpty(t, execution.Errors)
	assert.Equal(t, "UPSTREAM_DOWN", execution.Errors[0].Code)
	assert.Equal(t, "flaky", execution.Errors[0].StepID)
	assert.Contains(t, execution.FailedSteps, "flaky")

	shouldFail = false

	_, err = engine.Retry(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	engine.Wait()

	execution, err = engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestStepTimeoutFailsExecution(t *testing.T) {
	engine, persist := newTestEngine(t, map[string]custom.Func{
		"slow": func(ctx context.Context, _ protocol.StepInput, _ map[string]any) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(10 * time.Second):
				return map[string]any{"ok": true}, nil
			}
		},
	})

	definition := linearDefinition(models.WorkflowStep{
		ID:     "slow",
		Name:   "Slow",
		Type:   models.StepTypeCustom,
		Config: map[string]any{"handler": "slow"},
	})
	definition.Settings.StepTimeoutSeconds = 1
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusError, execution.Status)
	require.NotNil(t, execution.StepResults["slow"])
	assert.Equal(t, models.StepStatusTimeout, execution.StepResults["slow"].Status)
	require.NotEmpty(t, execution.Errors)
	assert.Equal(t, "STEP_TIMEOUT", execution.Errors[0].Code)
	assert.True(t, execution.Errors[0].Retryable)
}

func TestRetryRejectsNonErrorStates(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition()
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	_, err = engine.Retry(t.Context(), result.ExecutionID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestOnErrorContinuePolicyKeepsAdvancing(t *testing.T) {
	engine, persist := newTestEngine(t, map[string]custom.Func{
		"broken": func(_ context.Context, _ protocol.StepInput, _ map[string]any) (map[string]any, error) {
			return nil, protocol.NewStepError("SIDE_EFFECT_FAILED", "ignore me", false)
		},
	})

	definition := linearDefinition(models.WorkflowStep{
		ID:     "broken",
		Name:   "Broken",
		Type:   models.StepTypeCustom,
		Config: map[string]any{"handler": "broken"},
	})
	definition.Settings.OnError = models.OnErrorContinue
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Contains(t, execution.FailedSteps, "broken")
	require.NotEmpty(t, execution.Errors)
	assert.Equal(t, models.SeverityWarning, execution.Errors[0].Severity)
}

func TestApprovalGateSuspendsAndApproveResumes(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition(models.WorkflowStep{
		ID:   "gate",
		Name: "Manager approval",
		Type: models.StepTypeApprovalGate,
		Config: map[string]any{
			"approvers":    []any{"manager@example.com"},
			"approvalType": "SINGLE",
		},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaitingApproval, execution.Status)
	require.NotNil(t, execution.PendingApproval)
	assert.Equal(t, "gate", execution.PendingApproval.StepID)
	assert.Equal(t, []string{"manager@example.com"}, execution.PendingApproval.Approvers)

	_, err = engine.Approve(t.Context(), result.ExecutionID, "intruder@example.com", true)
	require.ErrorIs(t, err, ErrNotAnApprover)

	_, err = engine.Approve(t.Context(), result.ExecutionID, "manager@example.com", true)
	require.NoError(t, err)

	engine.Wait()

	execution, err = engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Nil(t, execution.PendingApproval)
}

func TestApprovalRejectionCancelsExecution(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition(models.WorkflowStep{
		ID:   "gate",
		Name: "Manager approval",
		Type: models.StepTypeApprovalGate,
		Config: map[string]any{
			"approvers": []any{"manager@example.com"},
		},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	_, err = engine.Approve(t.Context(), result.ExecutionID, "manager@example.com", false)
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
	require.NotNil(t, execution.StepResults["gate"])
	assert.Equal(t, models.StepStatusCancelled, execution.StepResults["gate"].Status)
	require.NotNil(t, execution.EndTime)
}

func TestApprovalGateAutoApprovesAfterWindow(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition(models.WorkflowStep{
		ID:   "gate",
		Name: "Manager approval",
		Type: models.StepTypeApprovalGate,
		Config: map[string]any{
			"approvers":        []any{"manager@example.com"},
			"approvalType":     "SINGLE",
			"autoApproveAfter": "10ms",
		},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.StepResults["gate"])
	assert.Equal(t, true, execution.StepResults["gate"].Output["auto_approved"])
}

func TestUnanimousGateWaitsForAllApprovers(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition(models.WorkflowStep{
		ID:   "gate",
		Name: "Partner approval",
		Type: models.StepTypeApprovalGate,
		Config: map[string]any{
			"approvers":    []any{"a@example.com", "b@example.com"},
			"approvalType": "UNANIMOUS",
		},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	execution, err := engine.Approve(t.Context(), result.ExecutionID, "a@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaitingApproval, execution.Status)

	_, err = engine.Approve(t.Context(), result.ExecutionID, "b@example.com", true)
	require.NoError(t, err)

	engine.Wait()

	execution, err = engine.ExecutionStatus(t.Context(), result.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestCancelActiveExecution(t *testing.T) {
	engine, persist := newTestEngine(t, nil)

	definition := linearDefinition(models.WorkflowStep{
		ID:   "gate",
		Name: "Approval",
		Type: models.StepTypeApprovalGate,
		Config: map[string]any{
			"approvers": []any{"manager@example.com"},
		},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	// Suspended executions may not be cancelled; only ACTIVE ones.
	_, err = engine.Cancel(t.Context(), result.ExecutionID, "user-1")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = engine.Cancel(t.Context(), "missing", "user-1")
	require.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestCancelStopsBeforeNextStep(t *testing.T) {
	engine, persist := newTestEngine(t, map[string]custom.Func{
		"noop": func(_ context.Context, _ protocol.StepInput, _ map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})

	definition := linearDefinition(models.WorkflowStep{
		ID:     "work",
		Name:   "Work",
		Type:   models.StepTypeCustom,
		Config: map[string]any{"handler": "noop"},
	})
	saveDefinition(t, persist, definition)

	result, err := engine.Execute(t.Context(), ExecuteRequest{DefinitionID: "def-1"})
	require.NoError(t, err)

	engine.Wait()

	// The drive has already finished; cancelling a completed execution fails.
	_, err = engine.Cancel(t.Context(), result.ExecutionID, "user-1")
	require.ErrorIs(t, err, ErrInvalidState)
}
