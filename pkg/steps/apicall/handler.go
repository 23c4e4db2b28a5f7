// Package apicall implements the API_CALL step, performing an HTTP request to
// an external endpoint with templated URL, headers, and payload, plus retry
// logic for transient failures.
package apicall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/caseflowhq/caseflow/pkg/models"
	"github.com/caseflowhq/caseflow/pkg/protocol"
	"github.com/caseflowhq/caseflow/pkg/template"
)

const defaultTimeoutSeconds = 30

// RetryConfig defines retry behavior for failed requests.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Handler performs one HTTP request per step execution.
type Handler struct {
	Endpoint string
	Method   string
	Headers  map[string]string
	Payload  any
	Timeout  time.Duration
	Retry    RetryConfig
	client   *http.Client
}

// Execute sends the request and returns status code, parsed body, and headers.
func (h *Handler) Execute(ctx context.Context, input protocol.StepInput, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("module", "apicall_step")

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= h.Retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, fmt.Sprintf("API call retry attempt %d/%d", attempt, h.Retry.Attempts))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.Retry.Delay):
			}
		}

		req, err := h.buildRequest(ctx, input.Variables)
		if err != nil {
			lastErr = err

			continue
		}

		resp, err = h.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < h.Retry.Attempts {
			err = resp.Body.Close()
			if err != nil {
				logger.ErrorContext(ctx, "failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("server error (status %d), retrying", resp.StatusCode)

			continue
		}

		break
	}

	if resp == nil {
		return nil, protocol.NewStepError("API_CALL_FAILED", fmt.Sprintf("all retry attempts failed, last error: %v", lastErr), true)
	}

	return h.processResponse(ctx, resp, logger)
}

func (h *Handler) buildRequest(ctx context.Context, variables map[string]any) (*http.Request, error) {
	endpoint := template.Render(h.Endpoint, variables)

	var bodyReader io.Reader

	if h.Payload != nil {
		rendered := template.RenderValue(h.Payload, variables)

		bodyBytes, err := json.Marshal(rendered)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}

		bodyReader = strings.NewReader(string(bodyBytes))
	}

	req, err := http.NewRequestWithContext(ctx, h.Method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if h.Payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range h.Headers {
		req.Header.Set(key, template.Render(value, variables))
	}

	return req, nil
}

func (h *Handler) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)

		logger.WarnContext(ctx, "Failed to parse response as JSON, returning as string", "error", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		retryable := resp.StatusCode >= http.StatusInternalServerError

		return nil, protocol.NewStepError("API_CALL_FAILED",
			fmt.Sprintf("endpoint returned status %d", resp.StatusCode), retryable)
	}

	logger.InfoContext(ctx, fmt.Sprintf("API call completed with status %d, body length: %d",
		resp.StatusCode, len(bodyBytes)))

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     resp.Header,
	}, nil
}

// Factory creates API call handlers.
type Factory struct{}

// NewFactory creates the API_CALL factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Type returns the step type this factory serves.
func (f *Factory) Type() models.StepType {
	return models.StepTypeAPICall
}

// ConfigSchema returns the config schema for API call steps.
func (f *Factory) ConfigSchema() string {
	return `{
		"type": "object",
		"properties": {
			"endpoint": {"type": "string"},
			"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"]},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}},
			"payload": {},
			"retry": {
				"type": "object",
				"properties": {
					"attempts": {"type": "integer", "minimum": 1, "maximum": 5},
					"delaySeconds": {"type": "integer", "minimum": 0}
				}
			}
		},
		"required": ["endpoint", "method"]
	}`
}

// Create builds a handler from the step config.
func (f *Factory) Create(config map[string]any) (protocol.StepHandler, error) {
	endpoint, ok := config["endpoint"].(string)
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("missing or invalid 'endpoint' in configuration")
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string)

	if headersConfig, exists := config["headers"]; exists {
		if headersMap, ok := headersConfig.(map[string]any); ok {
			for k, v := range headersMap {
				if strVal, ok := v.(string); ok {
					headers[k] = strVal
				}
			}
		}
	}

	retry := RetryConfig{Attempts: 1}

	if retryConfig, exists := config["retry"]; exists {
		retry = parseRetryConfig(retryConfig)
	}

	return &Handler{
		Endpoint: endpoint,
		Method:   strings.ToUpper(method),
		Headers:  headers,
		Payload:  config["payload"],
		Timeout:  defaultTimeoutSeconds * time.Second,
		Retry:    retry,
		client:   &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
	}, nil
}

func parseRetryConfig(retryConfig any) RetryConfig {
	retry := RetryConfig{Attempts: 1}

	retryMap, ok := retryConfig.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delaySeconds"].(float64); ok {
		retry.Delay = time.Duration(delay) * time.Second
	}

	return retry
}
