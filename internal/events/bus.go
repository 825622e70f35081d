package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events published on the bus.
type Handler func(event *Event)

// Bus is an in-process publish/subscribe hub. Handlers run synchronously on
// the publisher's goroutine and must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription
	nextID   int
	log      zerolog.Logger
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a function
// that removes the subscription.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.handlers[eventType]
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Emit publishes an event to every handler subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	// Copy subscriptions so handlers can subscribe or unsubscribe mid-dispatch
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[eventType]))
	copy(subs, b.handlers[eventType])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub.handler, event)
	}
}

// dispatch invokes a handler and contains any panic so one bad subscriber
// cannot take down the publisher.
func (b *Bus) dispatch(handler Handler, event *Event) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error().
				Str("event_type", string(event.Type)).
				Interface("panic", p).
				Msg("Event handler panicked")
		}
	}()

	handler(event)
}
