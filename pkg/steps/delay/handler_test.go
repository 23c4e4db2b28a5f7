package delay

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func TestDelayCompletesAfterDuration(t *testing.T) {
	factory := NewFactory()

	handler, err := factory.Create(map[string]any{"delayMinutes": 0.0001})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Step: &models.WorkflowStep{ID: "wait"},
	}, slog.Default())
	require.NoError(t, err)
	assert.NotEmpty(t, output["resumed_at"])
}

func TestDelayHonorsCancellation(t *testing.T) {
	factory := NewFactory()

	handler, err := factory.Create(map[string]any{"delayMinutes": 10.0})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = handler.Execute(ctx, protocol.StepInput{
		Step: &models.WorkflowStep{ID: "wait"},
	}, slog.Default())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDelayFactoryRejectsMissingDuration(t *testing.T) {
	factory := NewFactory()

	_, err := factory.Create(map[string]any{})
	require.Error(t, err)

	_, err = factory.Create(map[string]any{"delayMinutes": -1.0})
	require.Error(t, err)
}
