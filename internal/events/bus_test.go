package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan PublisherConnectedEvent, 1)

	unsub := bus.Subscribe(func(e PublisherConnectedEvent) {
		received <- e
	})
	defer unsub()

	event := PublisherConnectedEvent{
		ConnectionID: "conn-1",
		RemoteAddr:   "127.0.0.1:5000",
		Publishers:   1,
		Timestamp:    "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.ConnectionID != event.ConnectionID {
		t.Errorf("Expected connection_id %s, got %s", event.ConnectionID, got.ConnectionID)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan EncoderStateChangedEvent, 1)
	received2 := make(chan EncoderStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e EncoderStateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e EncoderStateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(EncoderStateChangedEvent{State: "running", PID: 42})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan PublisherRejectedEvent, 1)

	unsub := bus.Subscribe(func(e PublisherRejectedEvent) {
		received <- e
	})

	bus.Publish(PublisherRejectedEvent{Reason: "first"})
	<-received

	unsub()

	bus.Publish(PublisherRejectedEvent{Reason: "second"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	gatewayReceived := make(chan bool, 1)
	calendarReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ GatewayPublishEvent) {
		gatewayReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ CalendarChangedEvent) {
		calendarReceived <- true
	})
	defer unsub2()

	bus.Publish(GatewayPublishEvent{Action: "prePublish", StreamPath: "/live/key"})
	<-gatewayReceived

	select {
	case <-calendarReceived:
		t.Fatal("Calendar subscriber should NOT have received GatewayPublishEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(CalendarChangedEvent{Action: "created"})
	<-calendarReceived

	select {
	case <-gatewayReceived:
		t.Fatal("Gateway subscriber should NOT have received CalendarChangedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ LogEntryEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(LogEntryEvent{
					Level:     "info",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_NilIsNoop(_ *testing.T) {
	var bus *Bus
	bus.Publish(CalendarChangedEvent{Action: "deleted"})
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestEventJSONSerialization(t *testing.T) {
	data, err := json.Marshal(EncoderStateChangedEvent{
		State:     "exited",
		ExitCode:  1,
		Tail:      []string{"Connection refused"},
		Timestamp: "2025-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if result["state"] != "exited" {
		t.Errorf("Expected state exited, got %v", result["state"])
	}
	if _, ok := result["pid"]; ok {
		t.Error("Expected zero pid to be omitted")
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[GatewayPublishEvent](bus, ch)
	defer unsub()

	bus.Publish(GatewayPublishEvent{Action: "donePublish", StreamPath: "/live/key"})

	received := <-ch
	ev, ok := received.(GatewayPublishEvent)
	if !ok {
		t.Fatalf("Expected GatewayPublishEvent, got %T", received)
	}
	if ev.StreamPath != "/live/key" {
		t.Errorf("Expected stream_path /live/key, got %s", ev.StreamPath)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[CalendarChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(CalendarChangedEvent{Action: "created"})
		done <- true
	}()

	<-done
}

func TestSubscribeAll(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeAll(bus, ch)
	defer unsub()

	bus.Publish(PublisherConnectedEvent{ConnectionID: "a"})
	bus.Publish(EncoderStateChangedEvent{State: "running"})

	seen := map[string]bool{}
	for range 2 {
		select {
		case ev := <-ch:
			switch ev.(type) {
			case PublisherConnectedEvent:
				seen["publisher"] = true
			case EncoderStateChangedEvent:
				seen["encoder"] = true
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
	if !seen["publisher"] || !seen["encoder"] {
		t.Errorf("missing events: %v", seen)
	}
}
