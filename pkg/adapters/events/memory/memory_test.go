package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disasterproject/fanout/internal/ports"
)

func collect(t *testing.T, bus *EventBus, topic string) <-chan ports.Event {
	t.Helper()
	ch := make(chan ports.Event, 16)
	err := bus.Subscribe(context.Background(), topic, func(_ context.Context, ev ports.Event) error {
		ch <- ev
		return nil
	})
	require.NoError(t, err)
	return ch
}

func receive(t *testing.T, ch <-chan ports.Event) ports.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return ports.Event{}
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	first := collect(t, bus, ports.TopicRunEvents)
	second := collect(t, bus, ports.TopicRunEvents)

	event := ports.Event{ID: "ev-1", Type: ports.EventRunStarted, RunID: "run-1"}
	require.NoError(t, bus.Publish(context.Background(), ports.TopicRunEvents, event))

	assert.Equal(t, "ev-1", receive(t, first).ID)
	assert.Equal(t, "ev-1", receive(t, second).ID)
}

func TestPublishIsScopedToTopic(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	other := collect(t, bus, "other.topic")

	require.NoError(t, bus.Publish(context.Background(), ports.TopicRunEvents,
		ports.Event{ID: "ev-1", Type: ports.EventRunStarted}))

	select {
	case ev := <-other:
		t.Fatalf("unexpected event on other topic: %s", ev.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	assert.NoError(t, bus.Publish(context.Background(), ports.TopicRunEvents,
		ports.Event{ID: "ev-1"}))
}

func TestUnsubscribeDropsTopic(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ch := collect(t, bus, ports.TopicRunEvents)

	require.NoError(t, bus.Unsubscribe(context.Background(), ports.TopicRunEvents))
	require.NoError(t, bus.Publish(context.Background(), ports.TopicRunEvents,
		ports.Event{ID: "ev-1"}))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after unsubscribe: %s", ev.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ch := collect(t, bus, ports.TopicRunEvents)

	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), ports.TopicRunEvents, ports.Event{ID: "ev-1"})
	assert.ErrorContains(t, err, "closed")

	err = bus.Subscribe(context.Background(), ports.TopicRunEvents,
		func(context.Context, ports.Event) error { return nil })
	assert.ErrorContains(t, err, "closed")

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event after close: %s", ev.ID)
	case <-time.After(50 * time.Millisecond):
	}
}
