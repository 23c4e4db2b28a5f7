package apicall

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/protocol"
)

func TestAPICallSendsRenderedRequest(t *testing.T) {
	var captured struct {
		method string
		path   string
		auth   string
		body   map[string]any
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured.body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "crm-1"}`))
	}))
	defer server.Close()

	factory := NewFactory()

	handler, err := factory.Create(map[string]any{
		"endpoint": server.URL + "/cases/{{case_id}}",
		"method":   "post",
		"headers":  map[string]any{"Authorization": "Bearer {{token}}"},
		"payload":  map[string]any{"status": "{{status}}"},
	})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{
		Variables: map[string]any{"case_id": "C-9", "token": "tok", "status": "open"},
	}, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/cases/C-9", captured.path)
	assert.Equal(t, "Bearer tok", captured.auth)
	assert.Equal(t, "open", captured.body["status"])
	assert.Equal(t, http.StatusOK, output["status_code"])
	assert.Equal(t, map[string]any{"id": "crm-1"}, output["body"])
}

func TestAPICallRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	factory := NewFactory()

	handler, err := factory.Create(map[string]any{
		"endpoint": server.URL,
		"method":   "GET",
		"retry":    map[string]any{"attempts": float64(3), "delaySeconds": float64(0)},
	})
	require.NoError(t, err)

	output, err := handler.Execute(t.Context(), protocol.StepInput{}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusOK, output["status_code"])
}

func TestAPICallClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	factory := NewFactory()

	handler, err := factory.Create(map[string]any{
		"endpoint": server.URL,
		"method":   "POST",
	})
	require.NoError(t, err)

	_, err = handler.Execute(t.Context(), protocol.StepInput{}, slog.Default())
	require.Error(t, err)

	var stepErr *protocol.StepError

	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "API_CALL_FAILED", stepErr.Code)
	assert.False(t, stepErr.Retryable)
}

func TestAPICallFactoryRequiresEndpoint(t *testing.T) {
	factory := NewFactory()

	_, err := factory.Create(map[string]any{"method": "GET"})
	require.Error(t, err)
}
