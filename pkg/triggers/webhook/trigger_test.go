package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceValidatesConfig(t *testing.T) {
	logger := slog.Default()
	manager := NewServerManager(0, logger)

	_, err := NewSource(map[string]any{"path": "intake"}, manager, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with '/'")

	_, err = NewSource(map[string]any{"path": "/intake"}, manager, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow_id is required")

	source, err := NewSource(map[string]any{
		"path":        "/intake",
		"workflow_id": "def-1",
	}, manager, logger)
	require.NoError(t, err)
	assert.Equal(t, "/intake", source.Path)
	assert.True(t, source.Enabled)
}

func TestRegisterWebhookRejectsDuplicatePath(t *testing.T) {
	manager := NewServerManager(0, slog.Default())

	handler := &Handler{DefinitionID: "def-1", Logger: slog.Default()}
	require.NoError(t, manager.RegisterWebhook("/intake", handler))

	err := manager.RegisterWebhook("/intake", handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	manager.UnregisterWebhook("/intake")
	assert.Equal(t, 0, manager.HandlerCount())
}

func TestHandleWebhookRoutesToCallback(t *testing.T) {
	manager := NewServerManager(0, slog.Default())

	type call struct {
		definitionID string
		payload      map[string]any
	}

	calls := make(chan call, 1)

	err := manager.RegisterWebhook("/intake", &Handler{
		DefinitionID: "def-1",
		Logger:       slog.Default(),
		Callback: func(_ context.Context, definitionID string, payload map[string]any) error {
			calls <- call{definitionID: definitionID, payload: payload}

			return nil
		},
	})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(manager.handleWebhook))
	defer server.Close()

	resp, err := http.Post(server.URL+"/intake?source=crm", "application/json",
		strings.NewReader(`{"case_id":"c-9"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case got := <-calls:
		assert.Equal(t, "def-1", got.definitionID)
		assert.Equal(t, "POST", got.payload["method"])

		body, ok := got.payload["body"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "c-9", body["case_id"])

		query, ok := got.payload["query"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "crm", query["source"])
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked")
	}

	resp, err = http.Post(server.URL+"/unknown", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
