// Package datacheck implements the DATA_VALIDATION step, verifying that the
// named execution variables are present and non-empty before the workflow
// moves on.
package datacheck

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Handler checks execution variables for presence.
type Handler struct {
	fields []string
}

// Execute fails with the full list of missing fields. Without a configured
// field list every current execution variable must be non-empty.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "datacheck_step")

	fields := h.fields
	if len(fields) == 0 {
		fields = make([]string, 0, len(input.Variables))
		for name := range input.Variables {
			fields = append(fields, name)
		}

		sort.Strings(fields)
	}

	var missing []string

	for _, field := range fields {
		if isEmpty(input.Variables[field]) {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return nil, protocol.NewStepError("DATA_VALIDATION_FAILED",
			fmt.Sprintf("missing or empty variables: %s", strings.Join(missing, ", ")), false)
	}

	logger.InfoContext(ctx, "Data validation passed", "fields", len(fields))

	return map[string]any{
		"validated_fields": fields,
	}, nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

// Factory creates data validation handlers.
type Factory struct{}

// NewFactory creates the DATA_VALIDATION factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeDataValidation
}

// ConfigSchema returns the config schema for data validation steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"fields": {"type": "array", "items": {"type": "string"}}
		}
	}`
}

// Create builds a handler from the step config. Without an explicit field
// list the handler checks every current execution variable.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	var fields []string

	if raw, exists := config["fields"]; exists {
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("invalid 'fields' in configuration")
		}

		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid field %v in configuration", item)
			}

			fields = append(fields, s)
		}
	}

	return &Handler{fields: fields}, nil
}
