package custom

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func TestCustomRunsRegisteredFunction(t *testing.T) {
	factory := NewFactory(map[string]Func{
		"score": func(_ context.Context, input protocol.StepInput, _ map[string]any) (map[string]any, error) {
			amount, _ := input.Variables["amount"].(int)

			return map[string]any{"score": amount * 2}, nil
		},
	})

	handler, err := factory.Create(map[string]any{"handler": "score"})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Step:      &models.WorkflowStep{ID: "score", Type: models.StepTypeCustom},
		Variables: map[string]any{"amount": 21},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 42, output["score"])
}

func TestCustomPassThroughWithoutFunction(t *testing.T) {
	factory := NewFactory(nil)

	handler, err := factory.Create(map[string]any{"note": "case {{case_id}}"})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Step:      &models.WorkflowStep{ID: "x", Type: models.StepTypeCustom},
		Variables: map[string]any{"case_id": "C-1"},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, false, output["handled"])

	config, ok := output["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "case C-1", config["note"])
}
