// Package custom implements the CUSTOM step and the registry fallback for
// step types without a dedicated handler. The handler runs an optional
// injected function; without one it records the step and passes through.
package custom

import (
	"context"
	"log/slog"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

// Func is a pluggable step implementation keyed by the config's "handler"
// name. Deployments register their own functions at wiring time.
type Func func(ctx context.Context, input protocol.StepInput, config map[string]any) (map[string]any, error)

// Handler runs a registered custom function, or acts as a pass-through.
type Handler struct {
	config map[string]any
	fn     Func
}

// Execute runs the custom function when one matched the config; otherwise it
// logs the step and returns the rendered config as output.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "custom_step")

	if h.fn != nil {
		return h.fn(ctx, input, h.config)
	}

	logger.InfoContext(ctx, "Custom step executed as pass-through",
		"step_id", input.Step.ID,
		"step_type", string(input.Step.Type))

	return map[string]any{
		"handled":     false,
		"config":      template.RenderConfig(h.config, input.Variables),
		"executed_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Factory creates custom step handlers.
type Factory struct {
	funcs map[string]Func
}

// NewFactory creates the CUSTOM factory with the given named functions.
func NewFactory(funcs map[string]Func) *Factory {
	if funcs == nil {
		funcs = make(map[string]Func)
	}

	return &Factory{funcs: funcs}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeCustom
}

// ConfigSchema returns the config schema for custom steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"handler": {"type": "string"}
		}
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	var fn Func

	if name, ok := config["handler"].(string); ok {
		fn = f.funcs[name]
	}

	return &Handler{config: config, fn: fn}, nil
}
