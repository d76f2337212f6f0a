package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// This is needed for SSE integration where Huma expects a channel-based select loop.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}

// SubscribeAll subscribes ch to every event type carried on the admin event stream.
// Log entries are excluded; they have their own stream.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[PublisherConnectedEvent](bus, ch),
		SubscribeToChannel[PublisherDisconnectedEvent](bus, ch),
		SubscribeToChannel[PublisherRejectedEvent](bus, ch),
		SubscribeToChannel[EncoderStateChangedEvent](bus, ch),
		SubscribeToChannel[GatewayPublishEvent](bus, ch),
		SubscribeToChannel[CalendarChangedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
