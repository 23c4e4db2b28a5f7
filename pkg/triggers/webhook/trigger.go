// Package webhook provides an HTTP webhook trigger source with centralized
// server management. Each source binds one path to one workflow.
package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Source binds one webhook path to a workflow on the shared server.
type Source struct {
	Path         string
	DefinitionID string
	Enabled      bool

	manager *ServerManager
	logger  *slog.Logger
}

// NewSource creates a webhook source from configuration.
func NewSource(config map[string]any, manager *ServerManager, logger *slog.Logger) (*Source, error) {
	path, ok := config["path"].(string)
	if !ok {
		path = "/webhook"
	}

	definitionID, _ := config["workflow_id"].(string)

	enabled := true
	if v, ok := config["enabled"].(bool); ok {
		enabled = v
	}

	source := &Source{
		Path:         path,
		DefinitionID: definitionID,
		Enabled:      enabled,
		manager:      manager,
		logger: logger.With(
			"module", "webhook_trigger",
			"path", path,
			"workflow_id", definitionID,
		),
	}

	err := source.Validate()
	if err != nil {
		return nil, err
	}

	return source, nil
}

// Validate checks the source configuration.
func (s *Source) Validate() error {
	if s.Path == "" {
		return errors.New("webhook trigger path is required")
	}

	if s.Path[0] != '/' {
		return errors.New("webhook trigger path must start with '/'")
	}

	if s.DefinitionID == "" {
		return errors.New("webhook trigger workflow_id is required")
	}

	return nil
}

// Start registers the path on the shared server and ensures the server is
// running.
func (s *Source) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !s.Enabled {
		s.logger.InfoContext(ctx, "Webhook trigger is disabled")

		return nil
	}

	if s.manager == nil {
		return errors.New("webhook server manager is not configured")
	}

	err := s.manager.RegisterWebhook(s.Path, &Handler{
		DefinitionID: s.DefinitionID,
		Callback:     callback,
		Logger:       s.logger,
	})
	if err != nil {
		return err
	}

	err = s.manager.Start(ctx)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Webhook trigger started", "path", s.Path)

	return nil
}

// Stop unregisters the path. The shared server keeps running for other
// sources until its context is cancelled.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping webhook trigger", "path", s.Path)

	if s.manager != nil {
		s.manager.UnregisterWebhook(s.Path)
	}

	return nil
}
