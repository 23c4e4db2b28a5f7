// Package graph resolves step readiness over a definition's step graph.
package graph

import "github.com/caseflowhq/caseflow/pkg/models"

// FindStart returns the id of the START step, if one exists. Definitions with
// zero or several START steps are rejected by the validator before they reach
// the resolver.
func FindStart(steps []*models.WorkflowStep) (string, bool) {
	for _, step := range steps {
		if step.IsStart() {
			return step.ID, true
		}
	}

	return "", false
}

// NextSteps computes the step ids that become ready once the given step
// completes. Explicit successors take precedence and are returned verbatim,
// which lets branch steps force a path regardless of the dependency graph.
// Otherwise every step listing the completed step as a dependency becomes a
// candidate. A step with several predecessors becomes a candidate as soon as
// any one of them completes; the engine does not track partial dependency
// satisfaction.
func NextSteps(steps []*models.WorkflowStep, completedStepID string) []string {
	completed, found := findStep(steps, completedStepID)
	if !found {
		return nil
	}

	if completed.IsEnd() {
		return nil
	}

	if len(completed.Successors) > 0 {
		out := make([]string, len(completed.Successors))
		copy(out, completed.Successors)

		return out
	}

	var dependents []string

	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if dep == completedStepID {
				dependents = append(dependents, step.ID)

				break
			}
		}
	}

	return dependents
}

func findStep(steps []*models.WorkflowStep, stepID string) (*models.WorkflowStep, bool) {
	for _, step := range steps {
		if step.ID == stepID {
			return step, true
		}
	}

	return nil, false
}
