package webhook

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

var ErrConfigNil = errors.New("config cannot be nil")

// Factory creates webhook trigger sources sharing one server manager.
type Factory struct {
	manager *ServerManager
}

// NewFactory creates a webhook trigger source factory.
func NewFactory(manager *ServerManager) *Factory {
	return &Factory{manager: manager}
}

// ID returns the factory identifier.
func (f *Factory) ID() string {
	return "webhook"
}

// Create builds a webhook source from configuration.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.TriggerSource, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	source, err := NewSource(config, f.manager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook trigger: %w", err)
	}

	return source, nil
}
