package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan RunEvent) RunEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return RunEvent{}
	}
}

func TestMemoryHub_PublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "message_emitted"}))

	e := recv(t, ch)
	assert.Equal(t, "r1", e.RunID)
	assert.Equal(t, "message_emitted", e.EventType)
}

func TestMemoryHub_RunFilter(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{RunID: "r2"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "message_emitted"}))
	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r2", EventType: "run_finished"}))

	e := recv(t, ch)
	assert.Equal(t, "r2", e.RunID)
}

func TestMemoryHub_EventTypeFilter(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{EventTypes: []string{"run_finished"}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "message_emitted"}))
	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "run_finished"}))

	e := recv(t, ch)
	assert.Equal(t, "run_finished", e.EventType)
}

func TestMemoryHub_CancelStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	cancel()

	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "message_emitted"}))

	select {
	case e := <-ch:
		t.Fatalf("unexpected event after cancel: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryHub_MultipleSubscribersSameRun(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, EventFilter{RunID: "r1"})
	require.NoError(t, err)
	ch2, cancel2, err := hub.Subscribe(ctx, EventFilter{RunID: "r1"})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "node_entered"}))
	assert.Equal(t, "node_entered", recv(t, ch1).EventType)
	assert.Equal(t, "node_entered", recv(t, ch2).EventType)

	// Cancelling one listener must not detach the other.
	cancel1()
	require.NoError(t, hub.Publish(ctx, RunEvent{RunID: "r1", EventType: "run_finished"}))
	assert.Equal(t, "run_finished", recv(t, ch2).EventType)

	cancel2()
	hub.mu.Lock()
	_, live := hub.byRun["r1"]
	hub.mu.Unlock()
	assert.False(t, live, "empty run bucket should be dropped")
}

func TestMemoryHub_CancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, hub.Publish(ctx, RunEvent{}))
	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.Error(t, err)
}
