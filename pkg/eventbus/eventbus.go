// Package eventbus provides the in-process notification fan-out consumed by
// monitoring and UI collaborators. Delivery is fire-and-forget; consumers get
// causal order within one publishing call and nothing more.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a point-in-time fact published by the switch or the registry.
type Event interface {
	Kind() string
}

// HandlerFunc consumes one published event.
type HandlerFunc func(ctx context.Context, event Event)

// Bus is the publishing interface threaded through the engine components.
type Bus interface {
	Subscribe(kind string, handler HandlerFunc)
	Publish(ctx context.Context, event Event)
}

// MemoryBus is a mutex-guarded in-memory implementation of Bus. Published
// events are additionally captured so tests can assert on notification flow.
type MemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]HandlerFunc
	published []Event
	logger    *zap.Logger
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]HandlerFunc),
		logger:   logger,
	}
}

// Subscribe registers a handler for a specific event kind.
func (b *MemoryBus) Subscribe(kind string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish dispatches the event to all handlers registered for its kind.
// Handlers run synchronously on the publisher's goroutine.
func (b *MemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.Lock()
	b.published = append(b.published, event)
	handlers := b.handlers[event.Kind()]
	b.mu.Unlock()

	b.logger.Debug("event published", zap.String("kind", event.Kind()))

	for _, handler := range handlers {
		handler(ctx, event)
	}
}

// Published returns a snapshot of every event published so far.
func (b *MemoryBus) Published() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.published))
	copy(out, b.published)
	return out
}

// Clear drops the captured event history.
func (b *MemoryBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

var _ Bus = (*MemoryBus)(nil)
