// Package expression evaluates branch conditions against execution variables.
// It uses expr-lang/expr as a sandboxed evaluator: expressions get comparisons,
// boolean combinators, and variable lookups, with no ambient capability access.
package expression

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrEmptyExpression is returned when an empty expression is evaluated.
var ErrEmptyExpression = errors.New("empty expression")

// Evaluator compiles and evaluates boolean branch expressions.
// Thread-safe: compiled programs are cached and reused across goroutines.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates a new expression evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// EvaluateBool evaluates the expression against the variables and coerces the
// result to a boolean. A non-boolean result is an error rather than a silent
// truthiness conversion.
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, variables map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, variables)
	if err != nil {
		return false, err
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean (got %T)", expression, out)
	}

	return result, nil
}

// Evaluate compiles (or fetches from cache) the expression and runs it with
// the variable map as the environment.
func (e *Evaluator) Evaluate(_ context.Context, expression string, variables map[string]any) (any, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	env := variables
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, fmt.Errorf("expression %q evaluation failed: %w", expression, err)
	}

	return out, nil
}

func (e *Evaluator) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()

		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring the write lock.
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("expression %q compile error: %w", expression, err)
	}

	e.cache[expression] = prg

	return prg, nil
}
