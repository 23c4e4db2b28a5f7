// Package schedule provides a cron-based trigger source.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Source fires workflow executions on a cron schedule.
type Source struct {
	ID           string
	CronExpr     string
	DefinitionID string
	Variables    map[string]any
	Enabled      bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

// NewSource creates a schedule source from configuration.
func NewSource(config map[string]any, logger *slog.Logger) (*Source, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)
	definitionID, _ := config["workflow_id"].(string)
	variables, _ := config["variables"].(map[string]any)

	enabled := true
	if v, ok := config["enabled"].(bool); ok {
		enabled = v
	}

	source := &Source{
		ID:           id,
		CronExpr:     cronExpr,
		DefinitionID: definitionID,
		Variables:    variables,
		Enabled:      enabled,
		logger: logger.With(
			"module", "schedule_trigger",
			"id", id,
			"cron", cronExpr,
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
	if s.ID == "" {
		return errors.New("schedule trigger ID is required")
	}

	if s.DefinitionID == "" {
		return errors.New("schedule trigger workflow_id is required")
	}

	if s.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	_, err := cron.ParseStandard(s.CronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start begins firing the callback on the schedule.
func (s *Source) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !s.Enabled {
		s.logger.InfoContext(ctx, "Schedule trigger is disabled")

		return nil
	}

	s.logger.InfoContext(ctx, "Starting schedule trigger")
	s.callback = callback

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.CronExpr, s.fire)
	if err != nil {
		return fmt.Errorf("failed to add cron job for trigger %s: %w", s.ID, err)
	}

	s.cron.Start()

	return nil
}

func (s *Source) fire() {
	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range s.Variables {
		payload[k] = v
	}

	go func() {
		err := s.callback(context.Background(), s.DefinitionID, payload)
		if err != nil {
			s.logger.Error("Error executing workflow for trigger", "error", err)
		}
	}()
}

// Stop stops the cron scheduler.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping schedule trigger", "id", s.ID)

	if s.cron != nil {
		s.cron.Stop()
	}

	return nil
}
