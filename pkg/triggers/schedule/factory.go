package schedule

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

var ErrConfigNil = errors.New("config cannot be nil")

// Factory creates schedule trigger sources.
type Factory struct{}

// NewFactory creates a schedule trigger source factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the factory identifier.
func (f *Factory) ID() string {
	return "schedule"
}

// Create builds a schedule source from configuration.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.TriggerSource, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	source, err := NewSource(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule trigger: %w", err)
	}

	return source, nil
}
