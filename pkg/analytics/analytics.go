// Package analytics computes read-side metrics over stored execution history.
// It never mutates execution records.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
)

// Savings estimates use fixed per-execution constants. They are an
// approximation for dashboards, not a costing model.
const (
	costSavedPerExecution     = 25.0
	minutesSavedPerExecution  = 45.0
	slowMeanThresholdMs       = int64(time.Hour / time.Millisecond)
	reliabilityFloorRate      = 0.8
	recommendationReliability = "reliability"
	recommendationPerformance = "performance"
)

// Request selects the definitions and time window to analyze. An empty
// WorkflowIDs list means every stored definition.
type Request struct {
	WorkflowIDs          []string
	Period               time.Duration
	IncludeStepAnalytics bool
}

// DurationStats summarizes completed-execution durations in milliseconds.
type DurationStats struct {
	MeanMs   int64 `json:"mean_ms"`
	MedianMs int64 `json:"median_ms"`
	MinMs    int64 `json:"min_ms"`
	MaxMs    int64 `json:"max_ms"`
}

// Recommendation is a coarse heuristic finding about one workflow.
type Recommendation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StepAnalytics aggregates per-step outcomes across an analyzed window.
type StepAnalytics struct {
	StepID        string  `json:"step_id"`
	Executions    int     `json:"executions"`
	Failures      int     `json:"failures"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs int64   `json:"avg_duration_ms"`
}

// WorkflowAnalytics is the computed report for one definition.
type WorkflowAnalytics struct {
	WorkflowID       string           `json:"workflow_id"`
	WorkflowName     string           `json:"workflow_name"`
	TotalExecutions  int              `json:"total_executions"`
	PeriodExecutions int              `json:"period_executions"`
	SuccessRate      float64          `json:"success_rate"`
	ErrorRate        float64          `json:"error_rate"`
	TimeoutRate      float64          `json:"timeout_rate"`
	Durations        DurationStats    `json:"durations"`
	EstimatedSavings float64          `json:"estimated_cost_savings"`
	EstimatedHours   float64          `json:"estimated_time_saved_hours"`
	Recommendations  []Recommendation `json:"recommendations,omitempty"`
	Steps            []StepAnalytics  `json:"steps,omitempty"`
}

// Analyzer computes analytics reports from the execution store.
type Analyzer struct {
	logger      *slog.Logger
	persistence persistence.Persistence
}

// NewAnalyzer creates an analytics aggregator.
func NewAnalyzer(logger *slog.Logger, persist persistence.Persistence) *Analyzer {
	return &Analyzer{
		logger:      logger.With("module", "analytics"),
		persistence: persist,
	}
}

// Analyze produces one report per requested workflow, filtered to executions
// that started within the request period.
func (a *Analyzer) Analyze(ctx context.Context, req Request) ([]WorkflowAnalytics, error) {
	definitions, err := a.resolveDefinitions(ctx, req.WorkflowIDs)
	if err != nil {
		return nil, err
	}

	var periodStart time.Time
	if req.Period > 0 {
		periodStart = time.Now().UTC().Add(-req.Period)
	}

	reports := make([]WorkflowAnalytics, 0, len(definitions))

	for _, definition := range definitions {
		executions, err := a.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
			DefinitionID: definition.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list executions for %s: %w", definition.ID, err)
		}

		reports = append(reports, a.analyzeWorkflow(definition, executions, periodStart, req.IncludeStepAnalytics))
	}

	a.logger.InfoContext(ctx, "Analytics computed", "workflows", len(reports), "period", req.Period.String())

	return reports, nil
}

func (a *Analyzer) resolveDefinitions(ctx context.Context, workflowIDs []string) ([]*models.WorkflowDefinition, error) {
	if len(workflowIDs) == 0 {
		var all []*models.WorkflowDefinition

		for offset := 0; ; {
			result, err := a.persistence.DefinitionRepository().List(ctx, persistence.ListDefinitionsOptions{
				Limit:  100,
				Offset: offset,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to list definitions: %w", err)
			}

			all = append(all, result.Definitions...)

			if !result.HasNextPage {
				return all, nil
			}

			offset += len(result.Definitions)
		}
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(workflowIDs))

	for _, id := range workflowIDs {
		definition, err := a.persistence.DefinitionRepository().GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", id, err)
		}

		if definition != nil {
			definitions = append(definitions, definition)
		}
	}

	return definitions, nil
}

func (a *Analyzer) analyzeWorkflow(
	definition *models.WorkflowDefinition,
	executions []*models.WorkflowExecution,
	periodStart time.Time,
	includeSteps bool,
) WorkflowAnalytics {
	report := WorkflowAnalytics{
		WorkflowID:      definition.ID,
		WorkflowName:    definition.Name,
		TotalExecutions: len(executions),
	}

	var inPeriod []*models.WorkflowExecution

	for _, execution := range executions {
		if periodStart.IsZero() || !execution.StartTime.Before(periodStart) {
			inPeriod = append(inPeriod, execution)
		}
	}

	report.PeriodExecutions = len(inPeriod)
	if len(inPeriod) == 0 {
		return report
	}

	var completed, failed, timedOut int

	var durations []int64

	for _, execution := range inPeriod {
		switch execution.Status {
		case models.ExecutionStatusCompleted:
			completed++

			durations = append(durations, execution.DurationMs)
		case models.ExecutionStatusError:
			failed++

			if hasTimeoutError(execution) {
				timedOut++
			}
		}
	}

	total := float64(len(inPeriod))
	report.SuccessRate = float64(completed) / total
	report.ErrorRate = float64(failed) / total
	report.TimeoutRate = float64(timedOut) / total
	report.Durations = durationStats(durations)
	report.EstimatedSavings = float64(completed) * costSavedPerExecution
	report.EstimatedHours = float64(completed) * minutesSavedPerExecution / 60.0

	if report.SuccessRate < reliabilityFloorRate {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Type: recommendationReliability,
			Message: fmt.Sprintf("success rate %.0f%% is below 80%%; review failing steps and retry policies",
				report.SuccessRate*100),
		})
	}

	if report.Durations.MeanMs > slowMeanThresholdMs {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Type: recommendationPerformance,
			Message: fmt.Sprintf("mean duration %s exceeds one hour; review delays and external call latency",
				time.Duration(report.Durations.MeanMs)*time.Millisecond),
		})
	}

	if includeSteps {
		report.Steps = stepAnalytics(inPeriod)
	}

	return report
}

func hasTimeoutError(execution *models.WorkflowExecution) bool {
	for _, werr := range execution.Errors {
		if strings.Contains(werr.Code, "TIMEOUT") {
			return true
		}
	}

	return false
}

func durationStats(durations []int64) DurationStats {
	if len(durations) == 0 {
		return DurationStats{}
	}

	sorted := append([]int64(nil), durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, d := range sorted {
		sum += d
	}

	var median int64

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	return DurationStats{
		MeanMs:   sum / int64(len(sorted)),
		MedianMs: median,
		MinMs:    sorted[0],
		MaxMs:    sorted[len(sorted)-1],
	}
}

func stepAnalytics(executions []*models.WorkflowExecution) []StepAnalytics {
	type accumulator struct {
		executions int
		failures   int
		durationMs int64
	}

	byStep := make(map[string]*accumulator)

	for _, execution := range executions {
		for stepID, result := range execution.StepResults {
			acc, ok := byStep[stepID]
			if !ok {
				acc = &accumulator{}
				byStep[stepID] = acc
			}

			acc.executions++
			acc.durationMs += result.Duration

			if result.Status == models.StepStatusFailed || result.Status == models.StepStatusTimeout {
				acc.failures++
			}
		}
	}

	steps := make([]StepAnalytics, 0, len(byStep))

	for stepID, acc := range byStep {
		steps = append(steps, StepAnalytics{
			StepID:        stepID,
			Executions:    acc.executions,
			Failures:      acc.failures,
			SuccessRate:   float64(acc.executions-acc.failures) / float64(acc.executions),
			AvgDurationMs: acc.durationMs / int64(acc.executions),
		})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].StepID < steps[j].StepID })

	return steps
}
