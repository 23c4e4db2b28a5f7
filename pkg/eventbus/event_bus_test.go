package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflowhq/caseflow/pkg/channels/gochannel"
	"github.com/caseflowhq/caseflow/pkg/events"
)

func TestWatermillEventBusRoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() {
		_ = bus.Close()
	}()

	received := make(chan *events.StepCompleted, 1)

	err = bus.Handle(events.StepCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.StepCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	err = bus.Publish(t.Context(), "exec-1", events.StepCompleted{
		BaseEvent: events.BaseEvent{
			ID:          bus.GenerateID(),
			Type:        events.StepCompletedEvent,
			Timestamp:   time.Now().UTC(),
			ExecutionID: "exec-1",
		},
		StepID:   "validate",
		StepName: "Validate input",
	})
	require.NoError(t, err)

	select {
	case completed := <-received:
		assert.Equal(t, "exec-1", completed.ExecutionID)
		assert.Equal(t, "validate", completed.StepID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() {
		_ = bus.Close()
	}()

	require.NoError(t, bus.Subscribe(t.Context()))

	err = bus.Publish(t.Context(), "exec-2", events.ExecutionStarted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), ExecutionID: "exec-2"},
	})
	require.NoError(t, err)
}
