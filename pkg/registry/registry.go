// Package registry maps step types to their handler factories and validates
// step configuration against each factory's schema before dispatch.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Registry holds the registered step handler factories.
type Registry struct {
	logger    *slog.Logger
	factories map[models.StepType]protocol.StepHandlerFactory

	// fallback handles step types with no registered factory, or nil.
	fallback protocol.StepHandlerFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[models.StepType]protocol.StepHandlerFactory),
	}
}

// RegisterHandler registers a factory for its step type.
func (r *Registry) RegisterHandler(factory protocol.StepHandlerFactory) {
	r.factories[factory.Type()] = factory
}

// RegisterFallback registers the factory used for unrecognized step types.
func (r *Registry) RegisterFallback(factory protocol.StepHandlerFactory) {
	r.fallback = factory
}

// CreateHandler validates the config against the factory's schema and creates
// a handler for the step type. Unregistered types fall back to the CUSTOM
// factory when one is registered.
func (r *Registry) CreateHandler(stepType models.StepType, config map[string]any) (protocol.StepHandler, error) {
	factory, ok := r.factories[stepType]
	if !ok {
		if r.fallback == nil {
			return nil, fmt.Errorf("step type %q not registered", stepType)
		}

		factory = r.fallback
	}

	err := r.validateConfig(factory, config)
	if err != nil {
		return nil, err
	}

	return factory.Create(config)
}

// RegisteredTypes returns the step types with a dedicated factory.
func (r *Registry) RegisteredTypes() []models.StepType {
	types := make([]models.StepType, 0, len(r.factories))
	for stepType := range r.factories {
		types = append(types, stepType)
	}

	return types
}

// HealthCheck reports whether the registry has any factories registered.
func (r *Registry) HealthCheck() (string, bool) {
	if len(r.factories) == 0 {
		return "No step handlers registered", false
	}

	return fmt.Sprintf("%d step handlers registered", len(r.factories)), true
}

func (r *Registry) validateConfig(factory protocol.StepHandlerFactory, config map[string]any) error {
	schema := factory.ConfigSchema()
	if schema == "" {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config for step type %q: %w", factory.Type(), err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return protocol.NewStepError(
			"INVALID_STEP_CONFIG",
			fmt.Sprintf("config for step type %q is invalid: %s", factory.Type(), strings.Join(details, "; ")),
			false,
		)
	}

	return nil
}
