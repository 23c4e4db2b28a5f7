// Package queue provides a Redis-backed message queue trigger source.
// Messages pushed onto the configured list start workflow executions.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

// Source consumes messages from a Redis list and starts executions. A message
// may be a JSON object with "workflow_id" and "variables" keys; anything else
// is wrapped as a raw payload and routed to the configured default workflow.
type Source struct {
	Queue             string
	DefaultDefinition string
	Connection        map[string]string
	Enabled           bool

	client   redis.UniversalClient
	callback protocol.TriggerCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSource creates a queue source from configuration.
func NewSource(config map[string]any, logger *slog.Logger) (*Source, error) {
	queue, _ := config["queue"].(string)
	defaultDefinition, _ := config["workflow_id"].(string)

	enabled := true
	if v, ok := config["enabled"].(bool); ok {
		enabled = v
	}

	connectionConfig, _ := config["connection"].(map[string]any)

	connection := make(map[string]string)

	for k, v := range connectionConfig {
		if str, ok := v.(string); ok {
			connection[k] = str
		}
	}

	source := &Source{
		Queue:             queue,
		DefaultDefinition: defaultDefinition,
		Connection:        connection,
		Enabled:           enabled,
		stopCh:            make(chan struct{}),
		logger: logger.With(
			"module", "queue_trigger",
			"queue", queue,
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
	if s.Queue == "" {
		return errors.New("queue trigger queue name is required")
	}

	return nil
}

// Start connects to Redis and begins consuming.
func (s *Source) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !s.Enabled {
		s.logger.InfoContext(ctx, "Queue trigger is disabled")

		return nil
	}

	s.logger.InfoContext(ctx, "Starting queue trigger")
	s.callback = callback

	err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) connect(ctx context.Context) error {
	addr := s.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0

	if dbStr := s.Connection["db"]; dbStr != "" {
		var err error

		db, err = strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: s.Connection["password"],
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer", "queue", s.Queue)

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	definitionID, payload := s.decodeMessage(result[1])
	if definitionID == "" {
		s.logger.WarnContext(ctx, "Dropping queue message without a workflow id")

		return nil
	}

	go func() {
		err := s.callback(ctx, definitionID, payload)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error executing workflow for trigger", "error", err)
		}
	}()

	return nil
}

// decodeMessage extracts the target workflow and variables from a raw queue
// message. The configured default workflow backs messages that do not name
// one themselves.
func (s *Source) decodeMessage(message string) (string, map[string]any) {
	var envelope struct {
		WorkflowID string         `json:"workflow_id"`
		Variables  map[string]any `json:"variables"`
	}

	err := json.Unmarshal([]byte(message), &envelope)
	if err != nil {
		return s.DefaultDefinition, map[string]any{
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	}

	definitionID := envelope.WorkflowID
	if definitionID == "" {
		definitionID = s.DefaultDefinition
	}

	payload := envelope.Variables
	if payload == nil {
		payload = map[string]any{}
	}

	if payload["timestamp"] == nil {
		payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	return definitionID, payload
}

// Stop drains the consumer and closes the Redis client.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue trigger")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		err := s.client.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
