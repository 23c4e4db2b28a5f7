package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator_Comparisons(t *testing.T) {
	e := NewEvaluator()

	vars := map[string]any{
		"amount":   1500,
		"priority": "high",
		"approved": true,
	}

	tests := []struct {
		expression string
		want       bool
	}{
		{`amount > 1000`, true},
		{`amount <= 1000`, false},
		{`priority == "high"`, true},
		{`priority != "high"`, false},
		{`approved and amount > 100`, true},
		{`approved && amount > 10000`, false},
		{`priority == "low" or amount > 1000`, true},
		{`not approved`, false},
	}

	for _, tc := range tests {
		got, err := e.EvaluateBool(t.Context(), tc.expression, vars)
		require.NoError(t, err, tc.expression)
		assert.Equal(t, tc.want, got, tc.expression)
	}
}

func TestEvaluator_UndefinedVariablesAreNil(t *testing.T) {
	e := NewEvaluator()

	got, err := e.EvaluateBool(t.Context(), `missing == nil`, map[string]any{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluator_NonBooleanResultIsError(t *testing.T) {
	e := NewEvaluator()

	_, err := e.EvaluateBool(t.Context(), `1 + 1`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not evaluate to a boolean")
}

func TestEvaluator_EmptyExpression(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate(t.Context(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyExpression)
}

func TestEvaluator_CompileErrorSurfaces(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate(t.Context(), `amount >`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile error")
}

func TestEvaluator_CacheReuse(t *testing.T) {
	e := NewEvaluator()

	for range 3 {
		got, err := e.EvaluateBool(t.Context(), `count > 1`, map[string]any{"count": 5})
		require.NoError(t, err)
		assert.True(t, got)
	}

	assert.Len(t, e.cache, 1)
}
