// Package engine implements the execution driver: the lifecycle state machine
// that takes an execution from request through step dispatch to a terminal
// status, persisting after every transition and publishing lifecycle events.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/caseflowhq/caseflow/pkg/eventbus"
	"github.com/caseflowhq/caseflow/pkg/events"
	"github.com/caseflowhq/caseflow/pkg/expression"
	"github.com/caseflowhq/caseflow/pkg/graph"
	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/otelhelper"
	"github.com/caseflowhq/caseflow/pkg/persistence"
	"github.com/caseflowhq/caseflow/pkg/registry"
)

// ExecuteRequest asks the engine to start one execution of a definition.
type ExecuteRequest struct {
	DefinitionID string
	TriggerType  models.TriggerType
	Payload      map[string]any
	Context      models.ExecutionContext
}

// ExecuteResult is returned after the first scheduling pass. The drive
// continues asynchronously; callers poll ExecutionStatus or subscribe to the
// event bus for progress.
type ExecuteResult struct {
	ExecutionID string
	Status      models.ExecutionStatus
	NextSteps   []string
}

// Engine drives workflow executions.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	evaluator   *expression.Evaluator
	tracer      trace.Tracer
	workerID    string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

// NewEngine creates an execution driver.
func NewEngine(
	logger *slog.Logger,
	persist persistence.Persistence,
	reg *registry.Registry,
	bus eventbus.EventBus,
	workerID string,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine", "worker_id", workerID),
		persistence: persist,
		registry:    reg,
		eventBus:    bus,
		evaluator:   expression.NewEvaluator(),
		tracer:      otel.Tracer("caseflow/engine"),
		workerID:    workerID,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Execute starts an execution of the given definition. It runs the first
// scheduling pass synchronously, persists the new execution, and returns; the
// remaining steps are driven on a background goroutine.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(attribute.String(otelhelper.DefinitionIDKey, req.DefinitionID)))
	defer span.End()

	definition, err := e.persistence.DefinitionRepository().GetByID(ctx, req.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	if definition == nil {
		return nil, ErrDefinitionNotFound
	}

	if !definition.IsActive {
		return nil, ErrDefinitionInactive
	}

	variables, err := e.seedVariables(ctx, definition, req.Payload)
	if err != nil {
		return nil, err
	}

	startID, ok := graph.FindStart(definition.Steps)
	if !ok {
		return nil, ErrMissingStart
	}

	now := time.Now().UTC()
	execution := &models.WorkflowExecution{
		ID:                uuid.New().String(),
		DefinitionID:      definition.ID,
		DefinitionName:    definition.Name,
		DefinitionVersion: definition.Version,
		TriggerType:       req.TriggerType,
		TriggerPayload:    req.Payload,
		Status:            models.ExecutionStatusActive,
		CurrentStep:       startID,
		NextSteps:         []string{startID},
		Variables:         variables,
		StepResults:       make(map[string]*models.StepResult),
		Context:           req.Context,
		Metrics:           models.ExecutionMetrics{StepsTotal: len(definition.Steps)},
		StartTime:         now,
	}

	err = e.persistence.ExecutionRepository().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}

	definition.UsageCount++

	err = e.persistence.DefinitionRepository().Save(ctx, definition)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to bump definition usage count", "definition_id", definition.ID, "error", err)
	}

	e.publish(ctx, events.ExecutionStarted{
		BaseEvent:    e.baseEvent(events.ExecutionStartedEvent, execution),
		WorkflowName: definition.Name,
		StartStepID:  startID,
	})

	e.logger.InfoContext(ctx, "Execution started",
		"definition_id", definition.ID,
		"execution_id", execution.ID,
		"trigger_type", string(req.TriggerType))

	e.driveAsync(ctx, definition, execution)

	return &ExecuteResult{
		ExecutionID: execution.ID,
		Status:      execution.Status,
		NextSteps:   append([]string(nil), execution.NextSteps...),
	}, nil
}

// ExecutionStatus returns the current persisted state of an execution.
func (e *Engine) ExecutionStatus(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	if execution == nil {
		return nil, ErrExecutionNotFound
	}

	return execution, nil
}

// Wait blocks until all background drives have finished. Used in shutdown
// paths and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// seedVariables merges declared defaults with the trigger payload and checks
// required and validated variables. All violations are reported together.
func (e *Engine) seedVariables(ctx context.Context, definition *models.WorkflowDefinition, payload map[string]any) (map[string]any, error) {
	variables := make(map[string]any)

	for _, declared := range definition.Variables {
		if declared.DefaultValue != nil {
			variables[declared.Name] = declared.DefaultValue
		}
	}

	for key, value := range payload {
		variables[key] = value
	}

	varErr := &VariableError{}

	for _, declared := range definition.Variables {
		value, present := variables[declared.Name]

		if declared.Required && (!present || value == nil) {
			varErr.Missing = append(varErr.Missing, declared.Name)

			continue
		}

		if !present || declared.Validation == "" {
			continue
		}

		valid, err := e.evaluator.EvaluateBool(ctx, declared.Validation, map[string]any{"value": value})
		if err != nil || !valid {
			varErr.Invalid = append(varErr.Invalid, declared.Name)
		}
	}

	if len(varErr.Missing) > 0 || len(varErr.Invalid) > 0 {
		return nil, varErr
	}

	return variables, nil
}

// driveAsync continues the execution on a background goroutine, detached from
// the request context so an HTTP disconnect cannot abort the workflow.
func (e *Engine) driveAsync(ctx context.Context, definition *models.WorkflowDefinition, execution *models.WorkflowExecution) {
	bg := context.WithoutCancel(ctx)

	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		e.drive(bg, definition, execution.ID)
	}()
}

// lockFor returns the mutex serializing mutation of one execution record.
func (e *Engine) lockFor(executionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[executionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[executionID] = lock
	}

	return lock
}

func (e *Engine) baseEvent(eventType events.EventType, execution *models.WorkflowExecution) events.BaseEvent {
	return events.BaseEvent{
		ID:           e.eventBus.GenerateID(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		DefinitionID: execution.DefinitionID,
		ExecutionID:  execution.ID,
		WorkerID:     e.workerID,
	}
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	err := e.eventBus.Publish(ctx, eventKey(event), event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "event_type", string(event.GetType()), "error", err)
	}
}

func eventKey(event eventbus.Event) string {
	switch evt := event.(type) {
	case events.ExecutionStarted:
		return evt.ExecutionID
	case events.StepCompleted:
		return evt.ExecutionID
	case events.StepFailed:
		return evt.ExecutionID
	case events.ExecutionCompleted:
		return evt.ExecutionID
	case events.ExecutionFailed:
		return evt.ExecutionID
	case events.ExecutionCancelled:
		return evt.ExecutionID
	case events.ExecutionPaused:
		return evt.ExecutionID
	case events.ExecutionResumed:
		return evt.ExecutionID
	default:
		return ""
	}
}
