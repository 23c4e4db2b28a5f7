// Package validation checks the structural invariants of workflow definitions
// before they are stored or executed.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// ValidationError describes one structural violation in a definition.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Result carries all violations found in one validation pass.
type Result struct {
	Errors []ValidationError
}

// Valid reports whether the definition passed.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a single error summarizing all violations, or nil.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}

	messages := make([]string, len(r.Errors))
	for i, v := range r.Errors {
		messages[i] = v.Error()
	}

	return errors.New("definition validation failed: " + strings.Join(messages, "; "))
}

// Validator validates workflow definitions. It is a pure check: no state is
// created or mutated, and it runs over the complete definition on both create
// and update.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a definition validator.
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate checks the definition and returns every violation found.
func (v *Validator) Validate(def *models.WorkflowDefinition) *Result {
	result := &Result{}

	v.checkFields(def, result)
	v.checkSteps(def, result)

	return result
}

func (v *Validator) checkFields(def *models.WorkflowDefinition, result *Result) {
	err := v.validate.Struct(def)
	if err == nil {
		return
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "definition",
			Code:    "INVALID",
			Message: err.Error(),
		})

		return
	}

	for _, fe := range fieldErrors {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Namespace(),
			Code:    strings.ToUpper(fe.Tag()),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
}

func (v *Validator) checkSteps(def *models.WorkflowDefinition, result *Result) {
	if len(def.Steps) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "steps",
			Code:    "EMPTY",
			Message: "definition must declare at least one step",
		})

		return
	}

	stepIDs := make(map[string]bool, len(def.Steps))
	startCount := 0
	endCount := 0

	for _, step := range def.Steps {
		if stepIDs[step.ID] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "steps." + step.ID,
				Code:    "DUPLICATE_STEP_ID",
				Message: fmt.Sprintf("step id %q is declared more than once", step.ID),
			})
		}

		stepIDs[step.ID] = true

		switch step.Type {
		case models.StepTypeStart:
			startCount++
		case models.StepTypeEnd:
			endCount++
		case models.StepTypeParallelSplit, models.StepTypeParallelJoin:
			result.Errors = append(result.Errors, ValidationError{
				Field:   "steps." + step.ID,
				Code:    "UNSUPPORTED_STEP_TYPE",
				Message: fmt.Sprintf("step type %s is not supported: step advancement is strictly sequential", step.Type),
			})
		}
	}

	if startCount == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "steps",
			Code:    "MISSING_START",
			Message: "definition must declare a START step",
		})
	}

	if startCount > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "steps",
			Code:    "MULTIPLE_START",
			Message: "definition must declare exactly one START step",
		})
	}

	if endCount == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "steps",
			Code:    "MISSING_END",
			Message: "definition must declare at least one END step",
		})
	}

	for _, step := range def.Steps {
		v.checkStepReferences(step, stepIDs, result)
		v.checkStepConditions(step, result)
	}

	v.checkCycles(def, result)
}

// checkCycles rejects definitions whose dependency graph contains a cycle.
// A cyclic graph would keep re-promoting the same steps forever under
// any-predecessor advancement.
func (v *Validator) checkCycles(def *models.WorkflowDefinition, result *Result) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	dependents := make(map[string][]string, len(def.Steps))

	for _, step := range def.Steps {
		for _, dep := range step.Dependencies {
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	state := make(map[string]int, len(def.Steps))

	var visit func(stepID string) bool

	visit = func(stepID string) bool {
		switch state[stepID] {
		case visiting:
			return true
		case done:
			return false
		}

		state[stepID] = visiting

		for _, next := range dependents[stepID] {
			if visit(next) {
				return true
			}
		}

		state[stepID] = done

		return false
	}

	for _, step := range def.Steps {
		if state[step.ID] != unvisited {
			continue
		}

		if visit(step.ID) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "steps",
				Code:    "DEPENDENCY_CYCLE",
				Message: fmt.Sprintf("dependency cycle detected through step %q", step.ID),
			})

			return
		}
	}
}

// checkStepReferences verifies every dependency and successor resolves to a
// step id declared in the same definition.
func (v *Validator) checkStepReferences(step *models.WorkflowStep, stepIDs map[string]bool, result *Result) {
	for _, dep := range step.Dependencies {
		if !stepIDs[dep] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "steps." + step.ID + ".dependencies",
				Code:    "UNRESOLVED_REFERENCE",
				Message: fmt.Sprintf("dependency %q does not exist in this definition", dep),
			})
		}
	}

	for _, succ := range step.Successors {
		if !stepIDs[succ] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "steps." + step.ID + ".successors",
				Code:    "UNRESOLVED_REFERENCE",
				Message: fmt.Sprintf("successor %q does not exist in this definition", succ),
			})
		}
	}

	if step.Conditions != nil {
		for _, target := range append(append([]string{}, step.Conditions.OnTrue...), step.Conditions.OnFalse...) {
			if !stepIDs[target] {
				result.Errors = append(result.Errors, ValidationError{
					Field:   "steps." + step.ID + ".conditions",
					Code:    "UNRESOLVED_REFERENCE",
					Message: fmt.Sprintf("condition action %q does not exist in this definition", target),
				})
			}
		}
	}
}

// checkStepConditions requires at least one action on a declared condition.
func (v *Validator) checkStepConditions(step *models.WorkflowStep, result *Result) {
	if step.Conditions == nil {
		return
	}

	if len(step.Conditions.OnTrue) == 0 && len(step.Conditions.OnFalse) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "steps." + step.ID + ".conditions",
			Code:    "EMPTY_CONDITION",
			Message: "conditions must declare at least one onTrue or onFalse action",
		})
	}

	if step.Conditions.Expression == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "steps." + step.ID + ".conditions",
			Code:    "MISSING_EXPRESSION",
			Message: "conditions must declare an expression",
		})
	}
}
