package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/disasterproject/fanout/internal/ports"
)

// errBusClosed is returned on any use of the bus after Close.
var errBusClosed = errors.New("event bus is closed")

// EventBus implements ports.EventBus with in-process handler fan-out.
// Suitable for tests and single-process deployments.
type EventBus struct {
	subscribers map[string][]ports.EventHandler
	mu          sync.RWMutex
	closed      bool
}

// NewEventBus creates a new in-memory event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]ports.EventHandler),
	}
}

// Publish delivers the event to every subscriber of the topic. Handlers
// run in their own goroutines; handler errors are dropped.
func (e *EventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return errBusClosed
	}
	handlers := make([]ports.EventHandler, len(e.subscribers[topic]))
	copy(handlers, e.subscribers[topic])
	e.mu.RUnlock()

	for _, handler := range handlers {
		go func(h ports.EventHandler) {
			_ = h(ctx, event)
		}(handler)
	}

	return nil
}

// Subscribe registers a handler for a topic. The subscription lasts until
// Unsubscribe or Close.
func (e *EventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errBusClosed
	}
	e.subscribers[topic] = append(e.subscribers[topic], handler)
	return nil
}

// Unsubscribe removes all subscriptions from a topic.
func (e *EventBus) Unsubscribe(ctx context.Context, topic string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribers, topic)
	return nil
}

// Close drops all subscribers.
func (e *EventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string][]ports.EventHandler)
	e.closed = true
	return nil
}
