package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan BackendReassignedEvent, 1)

	unsub := bus.Subscribe(func(e BackendReassignedEvent) {
		received <- e
	})
	defer unsub()

	event := BackendReassignedEvent{
		DeviceID:   "cam-front",
		Generation: 3,
		Codec:      "vp9",
		Backend:    "software",
		Previous:   "software",
	}
	bus.Publish(event)

	got := <-received
	if got.DeviceID != event.DeviceID || got.Generation != event.Generation {
		t.Errorf("Expected %+v, got %+v", event, got)
	}
	// Reassignment events are meaningful even when the value is
	// textually unchanged.
	if got.Backend != got.Previous {
		t.Errorf("fixture should carry identical backend and previous, got %q and %q", got.Backend, got.Previous)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan ConfigResolvedEvent, 1)
	received2 := make(chan ConfigResolvedEvent, 1)

	unsub1 := bus.Subscribe(func(e ConfigResolvedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e ConfigResolvedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(ConfigResolvedEvent{DeviceID: "cam-front", Generation: 1})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ValidationFailedEvent, 1)

	unsub := bus.Subscribe(func(e ValidationFailedEvent) {
		received <- e
	})

	bus.Publish(ValidationFailedEvent{DeviceID: "cam-front"})
	<-received

	unsub()

	bus.Publish(ValidationFailedEvent{DeviceID: "cam-rear"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	resolvedReceived := make(chan bool, 1)
	liveTestReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ConfigResolvedEvent) {
		resolvedReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ LiveTestCompletedEvent) {
		liveTestReceived <- true
	})
	defer unsub2()

	bus.Publish(ConfigResolvedEvent{DeviceID: "cam-front"})
	<-resolvedReceived

	select {
	case <-liveTestReceived:
		t.Fatal("Live test subscriber should NOT have received ConfigResolvedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	bus.Publish(LiveTestCompletedEvent{DeviceID: "cam-front", Success: true})
	<-liveTestReceived

	select {
	case <-resolvedReceived:
		t.Fatal("Resolved subscriber should NOT have received LiveTestCompletedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}
