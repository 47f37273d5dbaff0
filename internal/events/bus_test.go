package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ElementErrorEvent, 1)

	unsub := bus.Subscribe(func(e ElementErrorEvent) {
		received <- e
	})
	defer unsub()

	event := ElementErrorEvent{
		Element:   "camsrc0",
		Domain:    DomainResource,
		Code:      CodeBusy,
		Message:   "device is already in use",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.Code != event.Code || got.Element != event.Element {
		t.Errorf("Expected %+v, got %+v", event, got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan StateChangedEvent, 1)
	received2 := make(chan StateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e StateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e StateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(StateChangedEvent{From: "null", To: "ready"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan FormatSelectedEvent, 1)

	unsub := bus.Subscribe(func(e FormatSelectedEvent) {
		received <- e
	})

	bus.Publish(FormatSelectedEvent{Index: 0})
	<-received

	unsub()

	bus.Publish(FormatSelectedEvent{Index: 1})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	errReceived := make(chan bool, 1)
	stateReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ElementErrorEvent) {
		errReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ StateChangedEvent) {
		stateReceived <- true
	})
	defer unsub2()

	bus.Publish(ElementErrorEvent{Code: CodeFailed})
	<-errReceived

	select {
	case <-stateReceived:
		t.Fatal("State subscriber should NOT have received ElementErrorEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ StreamStatusEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(StreamStatusEvent{
					Status:    "flowing",
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

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan LatencyEvent, 1)
	unsub := SubscribeToChannel(bus, ch)
	defer unsub()

	bus.Publish(LatencyEvent{Element: "camsrc0", Live: true})

	select {
	case e := <-ch:
		if !e.Live {
			t.Error("expected live latency event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
