package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(ConfigResolvedEvent{...})
func (b *Bus) Publish(ev Event) {
	// Use type switch to call the generic Publish with the correct type
	switch e := ev.(type) {
	case ConfigResolvedEvent:
		event.Publish(b.dispatcher, e)
	case BackendReassignedEvent:
		event.Publish(b.dispatcher, e)
	case ValidationFailedEvent:
		event.Publish(b.dispatcher, e)
	case AvailabilityChangedEvent:
		event.Publish(b.dispatcher, e)
	case LiveTestCompletedEvent:
		event.Publish(b.dispatcher, e)
	case CapabilitiesChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives (type inference)
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e ConfigResolvedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ConfigResolvedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BackendReassignedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ValidationFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(AvailabilityChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LiveTestCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CapabilitiesChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
