package queue

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

var ErrConfigNil = errors.New("config cannot be nil")

// Factory creates queue trigger sources.
type Factory struct{}

// NewFactory creates a queue trigger source factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the factory identifier.
func (f *Factory) ID() string {
	return "queue"
}

// Create builds a queue source from configuration.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.TriggerSource, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	source, err := NewSource(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue trigger: %w", err)
	}

	return source, nil
}
