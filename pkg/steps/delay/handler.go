// Package delay implements the DELAY step, pausing execution for a configured
// number of minutes while honoring context cancellation.
package delay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Handler waits for a fixed duration before completing.
type Handler struct {
	duration time.Duration
}

// Execute sleeps for the configured duration or until the context is done.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "delay_step")
	logger.InfoContext(ctx, "Delaying execution", "step_id", input.Step.ID, "duration", h.duration.String())

	timer := time.NewTimer(h.duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return map[string]any{
		"delayed_for": h.duration.String(),
		"resumed_at":  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Factory creates delay handlers.
type Factory struct{}

// NewFactory creates the DELAY factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeDelay
}

// ConfigSchema returns the config schema for delay steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"delayMinutes": {"type": "number", "exclusiveMinimum": 0}
		},
		"required": ["delayMinutes"]
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	minutes, ok := config["delayMinutes"].(float64)
	if !ok || minutes <= 0 {
		return nil, fmt.Errorf("missing or invalid 'delayMinutes' in configuration")
	}

	return &Handler{duration: time.Duration(minutes * float64(time.Minute))}, nil
}
