package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caseflowhq/caseflow/pkg/engine"
	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/registry"
)

type WorkerManager struct {
	id       string
	logger   *slog.Logger
	engine   *engine.Engine
	eventBus eventbus.EventBus
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	registry *registry.Registry,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "caseflow-worker", "worker_id", id),
		engine:   engine.NewEngine(logger, persistence, registry, eventBus, id),
		eventBus: eventBus,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	w.engine.Wait()

	return nil
}

func (w *WorkerManager) handleExecutionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	logger := w.logger.With(
		"definition_id", requested.DefinitionID,
		"trigger_type", requested.TriggerType,
		"event_id", requested.ID,
	)
	logger.InfoContext(ctx, "Processing execution requested event")

	result, err := w.engine.Execute(ctx, engine.ExecuteRequest{
		DefinitionID: requested.DefinitionID,
		TriggerType:  requested.TriggerType,
		Payload:      requested.Payload,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start execution", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Execution scheduled",
		"execution_id", result.ExecutionID,
		"status", result.Status,
	)

	return nil
}
