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

// Publish publishes an event to all subscribers.
// A nil bus is a no-op so components can run without one.
// Usage: bus.Publish(PublisherConnectedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case PublisherConnectedEvent:
		event.Publish(b.dispatcher, e)
	case PublisherDisconnectedEvent:
		event.Publish(b.dispatcher, e)
	case PublisherRejectedEvent:
		event.Publish(b.dispatcher, e)
	case EncoderStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case GatewayPublishEvent:
		event.Publish(b.dispatcher, e)
	case CalendarChangedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e EncoderStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(PublisherConnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PublisherDisconnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PublisherRejectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(GatewayPublishEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CalendarChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
