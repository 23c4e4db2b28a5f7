package analytics

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/persistence/file"
)

func seedExecutions(t *testing.T, persist persistence.Persistence, definitionID string, executions []*models.WorkflowExecution) {
	t.Helper()

	for _, execution := range executions {
		execution.DefinitionID = definitionID
		require.NoError(t, persist.ExecutionRepository().Save(t.Context(), execution))
	}
}

func completedExecution(id string, startedAgo time.Duration, durationMs int64) *models.WorkflowExecution {
	start := time.Now().UTC().Add(-startedAgo)
	end := start.Add(time.Duration(durationMs) * time.Millisecond)

	return &models.WorkflowExecution{
		ID:         id,
		Status:     models.ExecutionStatusCompleted,
		StartTime:  start,
		EndTime:    &end,
		DurationMs: durationMs,
		StepResults: map[string]*models.StepResult{
			"work": {StepID: "work", Status: models.StepStatusCompleted, Duration: durationMs},
		},
	}
}

func failedExecution(id string, startedAgo time.Duration, code string) *models.WorkflowExecution {
	return &models.WorkflowExecution{
		ID:        id,
		Status:    models.ExecutionStatusError,
		StartTime: time.Now().UTC().Add(-startedAgo),
		Errors:    []models.WorkflowError{{Code: code, StepID: "work", Severity: models.SeverityError}},
		StepResults: map[string]*models.StepResult{
			"work": {StepID: "work", Status: models.StepStatusFailed},
		},
	}
}

func TestAnalyzeComputesRatesAndDurations(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())
	require.NoError(t, persist.DefinitionRepository().Save(t.Context(), &models.WorkflowDefinition{
		ID: "def-1", Name: "Intake", IsActive: true,
	}))

	seedExecutions(t, persist, "def-1", []*models.WorkflowExecution{
		completedExecution("e1", time.Hour, 1000),
		completedExecution("e2", time.Hour, 3000),
		completedExecution("e3", time.Hour, 2000),
		failedExecution("e4", time.Hour, "UPSTREAM_DOWN"),
		failedExecution("e5", time.Hour, "STEP_TIMEOUT"),
	})

	analyzer := NewAnalyzer(slog.Default(), persist)

	reports, err := analyzer.Analyze(t.Context(), Request{
		WorkflowIDs: []string{"def-1"},
		Period:      24 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, "Intake", report.WorkflowName)
	assert.Equal(t, 5, report.TotalExecutions)
	assert.Equal(t, 5, report.PeriodExecutions)
	assert.InDelta(t, 0.6, report.SuccessRate, 0.0001)
	assert.InDelta(t, 0.4, report.ErrorRate, 0.0001)
	assert.InDelta(t, 0.2, report.TimeoutRate, 0.0001)

	assert.Equal(t, int64(2000), report.Durations.MeanMs)
	assert.Equal(t, int64(2000), report.Durations.MedianMs)
	assert.Equal(t, int64(1000), report.Durations.MinMs)
	assert.Equal(t, int64(3000), report.Durations.MaxMs)

	assert.InDelta(t, 3*costSavedPerExecution, report.EstimatedSavings, 0.0001)
	assert.InDelta(t, 3*minutesSavedPerExecution/60.0, report.EstimatedHours, 0.0001)
}

func TestAnalyzeEmitsReliabilityRecommendation(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())
	require.NoError(t, persist.DefinitionRepository().Save(t.Context(), &models.WorkflowDefinition{
		ID: "def-1", Name: "Flaky", IsActive: true,
	}))

	seedExecutions(t, persist, "def-1", []*models.WorkflowExecution{
		completedExecution("e1", time.Hour, 500),
		failedExecution("e2", time.Hour, "BOOM"),
		failedExecution("e3", time.Hour, "BOOM"),
	})

	analyzer := NewAnalyzer(slog.Default(), persist)

	reports, err := analyzer.Analyze(t.Context(), Request{Period: 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	require.NotEmpty(t, reports[0].Recommendations)
	assert.Equal(t, recommendationReliability, reports[0].Recommendations[0].Type)
}

func TestAnalyzeFiltersByPeriod(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())
	require.NoError(t, persist.DefinitionRepository().Save(t.Context(), &models.WorkflowDefinition{
		ID: "def-1", Name: "Periodic", IsActive: true,
	}))

	seedExecutions(t, persist, "def-1", []*models.WorkflowExecution{
		completedExecution("recent", time.Hour, 1000),
		completedExecution("ancient", 90*24*time.Hour, 9000),
	})

	analyzer := NewAnalyzer(slog.Default(), persist)

	reports, err := analyzer.Analyze(t.Context(), Request{
		WorkflowIDs: []string{"def-1"},
		Period:      7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 2, reports[0].TotalExecutions)
	assert.Equal(t, 1, reports[0].PeriodExecutions)
	assert.Equal(t, int64(1000), reports[0].Durations.MaxMs)
}

func TestAnalyzeIncludesStepAnalytics(t *testing.T) {
	persist := file.NewPersistence(t.TempDir())
	require.NoError(t, persist.DefinitionRepository().Save(t.Context(), &models.WorkflowDefinition{
		ID: "def-1", Name: "Steps", IsActive: true,
	}))

	seedExecutions(t, persist, "def-1", []*models.WorkflowExecution{
		completedExecution("e1", time.Hour, 1000),
		failedExecution("e2", time.Hour, "BOOM"),
	})

	analyzer := NewAnalyzer(slog.Default(), persist)

	reports, err := analyzer.Analyze(t.Context(), Request{
		WorkflowIDs:          []string{"def-1"},
		Period:               24 * time.Hour,
		IncludeStepAnalytics: true,
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Steps, 1)

	step := reports[0].Steps[0]
	assert.Equal(t, "work", step.StepID)
	assert.Equal(t, 2, step.Executions)
	assert.Equal(t, 1, step.Failures)
	assert.InDelta(t, 0.5, step.SuccessRate, 0.0001)
}
