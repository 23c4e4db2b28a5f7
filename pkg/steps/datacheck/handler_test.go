package datacheck

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func TestDataCheckPassesWithAllFields(t *testing.T) {
	factory := NewFactory()

	handler, err := factory.Create(map[string]any{
		"fields": []any{"case_id", "client_name"},
	})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Variables: map[string]any{"case_id": "C-1", "client_name": "Acme"},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"case_id", "client_name"}, output["validated_fields"])
}

func TestDataCheckReportsAllMissingFields(t *testing.T) {
	factory := NewFactory()

	handler, err := factory.Create(map[string]any{
		"fields": []any{"case_id", "client_name", "amount"},
	})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), protocol.StepInput{
		Variables: map[string]any{"case_id": "  ", "amount": 10},
	}, slog.Default())
	require.Error(t, err)

	var stepErr *protocol.StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "DATA_VALIDATION_FAILED", stepErr.Code)
	assert.Contains(t, stepErr.Message, "case_id")
	assert.Contains(t, stepErr.Message, "client_name")
	assert.False(t, stepErr.Retryable)
}

func TestDataCheckDefaultsToAllVariables(t *testing.T) {
	factory := NewFactory()

	handler, err := factory.Create(map[string]any{})
	require.NoError(t, err)

	// One empty variable fails the check even though nothing declares it.
	_, err = handler.Execute(t.Context(), protocol.StepInput{
		Definition: &models.WorkflowDefinition{},
		Variables:  map[string]any{"case_id": "C-2", "notes": ""},
	}, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes")
	assert.NotContains(t, err.Error(), "case_id")

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Definition: &models.WorkflowDefinition{},
		Variables:  map[string]any{"case_id": "C-2", "notes": "n"},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"case_id", "notes"}, output["validated_fields"])
}
