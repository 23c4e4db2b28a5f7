package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/triggers/queue"
	"github.com/caseflowhq/caseflow/pkg/triggers/schedule"
	"github.com/caseflowhq/caseflow/pkg/triggers/webhook"
)

// TriggerManager starts a trigger source for every trigger declared on an
// active workflow definition and publishes an execution request each time
// one fires.
type TriggerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	factories   map[models.TriggerType]protocol.TriggerSourceFactory

	mu      sync.Mutex
	running map[string]protocol.TriggerSource

	ctx    context.Context
	cancel context.CancelFunc
}

func NewTriggerManager(
	id string,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	webhookPort int,
	logger *slog.Logger,
) *TriggerManager {
	ctx, cancel := context.WithCancel(context.Background())

	factories := map[models.TriggerType]protocol.TriggerSourceFactory{
		models.TriggerTypeSchedule: schedule.NewFactory(),
		models.TriggerTypeEvent:    queue.NewFactory(),
		models.TriggerTypeWebhook:  webhook.NewFactory(webhook.NewServerManager(webhookPort, logger)),
	}

	return &TriggerManager{
		id:          id,
		logger:      logger.With("module", "caseflow-trigger", "manager_id", id),
		persistence: persist,
		eventBus:    eventBus,
		factories:   factories,
		running:     make(map[string]protocol.TriggerSource),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (tm *TriggerManager) Start() error {
	tm.logger.Info("Starting trigger service")

	definitions, err := tm.activeDefinitions()
	if err != nil {
		return fmt.Errorf("failed to list definitions: %w", err)
	}

	if len(definitions) == 0 {
		tm.logger.Info("No active workflow definitions found")

		return nil
	}

	tm.logger.Info("Found active workflow definitions", "count", len(definitions))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for _, definition := range definitions {
		tm.startDefinitionTriggers(definition)
	}

	<-sigChan
	tm.logger.Info("Shutting down trigger service...")
	tm.Stop()

	return nil
}

func (tm *TriggerManager) activeDefinitions() ([]*models.WorkflowDefinition, error) {
	const pageSize = 100

	active := true
	definitions := make([]*models.WorkflowDefinition, 0)

	for offset := 0; ; offset += pageSize {
		page, err := tm.persistence.DefinitionRepository().List(tm.ctx, persistence.ListDefinitionsOptions{
			Limit:    pageSize,
			Offset:   offset,
			IsActive: &active,
		})
		if err != nil {
			return nil, err
		}

		definitions = append(definitions, page.Definitions...)

		if !page.HasNextPage {
			return definitions, nil
		}
	}
}

func (tm *TriggerManager) startDefinitionTriggers(definition *models.WorkflowDefinition) {
	logger := tm.logger.With(
		"definition_id", definition.ID,
		"workflow_name", definition.Name,
	)

	for _, trigger := range definition.Triggers {
		triggerLogger := logger.With("trigger_id", trigger.ID, "trigger_type", trigger.Type)

		factory, ok := tm.factories[trigger.Type]
		if !ok {
			// manual and system triggers have no external source to watch
			continue
		}

		config := make(map[string]any, len(trigger.Config)+2)
		for k, v := range trigger.Config {
			config[k] = v
		}

		config["id"] = trigger.ID
		config["workflow_id"] = definition.ID

		source, err := factory.Create(config, triggerLogger)
		if err != nil {
			triggerLogger.Error("Failed to create trigger source", "error", err)

			continue
		}

		err = source.Validate()
		if err != nil {
			triggerLogger.Error("Invalid trigger configuration", "error", err)

			continue
		}

		err = source.Start(tm.ctx, tm.publishExecutionRequested(trigger))
		if err != nil {
			triggerLogger.Error("Failed to start trigger source", "error", err)

			continue
		}

		tm.mu.Lock()
		tm.running[trigger.ID] = source
		tm.mu.Unlock()

		triggerLogger.Info("Started trigger source")
	}
}

func (tm *TriggerManager) publishExecutionRequested(trigger models.WorkflowTrigger) protocol.TriggerCallback {
	return func(ctx context.Context, definitionID string, payload map[string]any) error {
		logger := tm.logger.With(
			"definition_id", definitionID,
			"trigger_id", trigger.ID,
			"trigger_type", trigger.Type,
		)

		event := events.ExecutionRequested{
			BaseEvent: events.BaseEvent{
				ID:           tm.eventBus.GenerateID(),
				Type:         events.ExecutionRequestedEvent,
				Timestamp:    time.Now().UTC(),
				DefinitionID: definitionID,
				Metadata: map[string]any{
					"trigger_id": trigger.ID,
				},
			},
			TriggerType: trigger.Type,
			Payload:     payload,
		}

		err := tm.eventBus.Publish(ctx, definitionID, event)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to publish execution request", "error", err)

			return err
		}

		logger.InfoContext(ctx, "Published execution request", "event_id", event.ID)

		return nil
	}
}

func (tm *TriggerManager) Stop() {
	tm.cancel()

	tm.mu.Lock()
	defer tm.mu.Unlock()

	for triggerID, source := range tm.running {
		err := source.Stop(context.Background())
		if err != nil {
			tm.logger.Error("Error stopping trigger source", "trigger_id", triggerID, "error", err)
		}
	}

	tm.running = make(map[string]protocol.TriggerSource)
	tm.logger.Info("All trigger sources stopped")
}
