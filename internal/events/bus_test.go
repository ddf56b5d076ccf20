package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/types"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// TestBusPublishSubscribe verifies a subscriber receives published
// events.
func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{}, 10)
	defer cleanup()

	requestID := types.NewID()
	err := bus.Publish(context.Background(), Event{Type: EventPipelineStarted, RequestID: requestID})
	require.NoError(t, err)

	event := receive(t, ch)
	assert.Equal(t, EventPipelineStarted, event.Type)
	assert.Equal(t, requestID, event.RequestID)
}

// TestBusTypeFilter verifies type filtering delivers only matching
// events.
func TestBusTypeFilter(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{Types: []EventType{EventEscalated}}, 10)
	defer cleanup()

	requestID := types.NewID()
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventClassified, RequestID: requestID}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventEscalated, RequestID: requestID}))

	event := receive(t, ch)
	assert.Equal(t, EventEscalated, event.Type, "only the filtered type must arrive")
	assert.Empty(t, ch, "the non-matching event must not be buffered")
}

// TestBusRequestFilter verifies request-scoped subscriptions.
func TestBusRequestFilter(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	mine := types.NewID()
	other := types.NewID()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{RequestID: mine}, 10)
	defer cleanup()

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventClassified, RequestID: other}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventClassified, RequestID: mine}))

	event := receive(t, ch)
	assert.Equal(t, mine, event.RequestID)
}

// TestBusNonBlockingPublish verifies a full subscriber buffer drops the
// event instead of blocking the publisher.
func TestBusNonBlockingPublish(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	_, cleanup := bus.Subscribe(context.Background(), Filter{}, 1)
	defer cleanup()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = bus.Publish(context.Background(), Event{Type: EventClassified, RequestID: types.NewID()})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

// TestBusUnsubscribe verifies cleanup removes the subscription and
// closes its channel.
func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch, cleanup := bus.Subscribe(context.Background(), Filter{}, 10)
	assert.Equal(t, 1, bus.SubscriberCount())

	cleanup()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open, "channel must be closed after unsubscribe")
}

// TestBusClose verifies publishing after close fails and close is
// idempotent.
func TestBusClose(t *testing.T) {
	bus := NewBus(10)
	_, cleanup := bus.Subscribe(context.Background(), Filter{}, 10)
	defer cleanup()

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "close must be idempotent")

	err := bus.Publish(context.Background(), Event{Type: EventClassified, RequestID: types.NewID()})
	assert.Error(t, err)
}

// TestFilterMatches exercises the filter matrix directly.
func TestFilterMatches(t *testing.T) {
	requestID := types.NewID()
	event := Event{Type: EventValidated, RequestID: requestID}

	assert.True(t, Filter{}.Matches(event), "zero filter matches everything")
	assert.True(t, Filter{Types: []EventType{EventValidated}}.Matches(event))
	assert.False(t, Filter{Types: []EventType{EventClassified}}.Matches(event))
	assert.True(t, Filter{RequestID: requestID}.Matches(event))
	assert.False(t, Filter{RequestID: types.NewID()}.Matches(event))
}
