package events

import (
	"errors"
	"testing"
	"time"
)

const eventPing EventType = "ping"

type pingEvent struct {
	BaseEvent
	N int
}

func ping(n int) *pingEvent {
	return &pingEvent{BaseEvent: NewBase(eventPing), N: n}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)
	bus.PublishProgress("import", "students.csv", 50, 100)

	select {
	case received := <-ch:
		progress, ok := received.(*ProgressEvent)
		if !ok {
			t.Fatalf("received %T, want *ProgressEvent", received)
		}
		if progress.Name != "students.csv" || progress.Progress != 0.5 {
			t.Errorf("event = %+v", progress)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventBus_FiltersByType(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	progressCh := bus.Subscribe(EventProgress)
	pingCh := bus.Subscribe(eventPing)

	bus.PublishProgress("export", "students.csv", 1, 2)

	if len(progressCh) != 1 {
		t.Error("progress subscriber didn't receive the event")
	}
	if len(pingCh) != 0 {
		t.Error("ping subscriber received a progress event")
	}
}

func TestEventBus_FullBufferDrops(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(eventPing)
	for i := 0; i < 10; i++ {
		bus.Publish(ping(i))
	}

	if got := len(ch); got != 2 {
		t.Errorf("buffered events = %d, want 2", got)
	}
	if got := bus.Dropped(); got != 8 {
		t.Errorf("Dropped() = %d, want 8", got)
	}
	if first := (<-ch).(*pingEvent); first.N != 0 {
		t.Errorf("first buffered event = %d, want 0", first.N)
	}
}

func TestNewEventBus_ClampsBuffer(t *testing.T) {
	if bus := NewEventBus(0); bus.bufferSize <= 0 {
		t.Errorf("bufferSize = %d, want the default", bus.bufferSize)
	}
	if bus := NewEventBus(1 << 30); bus.bufferSize >= 1<<30 {
		t.Errorf("bufferSize = %d, want it clamped", bus.bufferSize)
	}
}

func TestEventBus_ListenIsSynchronous(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	var got []int
	bus.Listen(eventPing, func(e Event) {
		got = append(got, e.(*pingEvent).N)
	})

	bus.Publish(ping(1))
	// No waiting: the listener must have run before Publish returned
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("listener saw %v, want [1]", got)
	}

	bus.PublishProgress("import", "a.csv", 0, 1)
	if len(got) != 1 {
		t.Errorf("listener saw an event of another type: %v", got)
	}
}

func TestEventBus_ListenOrderAndCancel(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	var order []int
	cancelFirst := bus.Listen(eventPing, func(Event) { order = append(order, 1) })
	bus.ListenAll(func(Event) { order = append(order, 2) })

	bus.Publish(ping(0))
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}

	cancelFirst()
	cancelFirst() // second call is a no-op
	order = nil
	bus.Publish(ping(0))
	if len(order) != 1 || order[0] != 2 {
		t.Errorf("after cancel order = %v, want [2]", order)
	}
}

func TestEventBus_ListenerMayPublish(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	var seen []string
	bus.Listen(EventError, func(e Event) {
		seen = append(seen, e.(*ErrorEvent).Operation)
	})
	bus.Listen(eventPing, func(Event) {
		bus.PublishError("test", "reload", errors.New("boom"))
	})

	bus.Publish(ping(0))
	if len(seen) != 1 || seen[0] != "reload" {
		t.Errorf("error listener saw %v, want [reload]", seen)
	}
}

func TestEventBus_ListenerAddedDuringPublish(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	late := 0
	bus.Listen(eventPing, func(Event) {
		bus.Listen(eventPing, func(Event) { late++ })
	})

	bus.Publish(ping(0))
	if late != 0 {
		t.Errorf("listener added during Publish ran for that event")
	}
	bus.Publish(ping(1))
	if late != 1 {
		t.Errorf("late listener ran %d times, want 1", late)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(eventPing)
	called := false
	bus.Listen(eventPing, func(Event) { called = true })

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close()")
	}

	bus.Publish(ping(0))
	if called {
		t.Error("listener called after Close()")
	}
	if _, ok := <-bus.Subscribe(eventPing); ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
	bus.Listen(eventPing, func(Event) {})()
	bus.Unsubscribe(eventPing, ch)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(eventPing)
	kept := bus.Subscribe(eventPing)
	bus.Unsubscribe(eventPing, ch)
	bus.Publish(ping(0))

	if len(ch) != 0 {
		t.Error("unsubscribed channel received an event")
	}
	if len(kept) != 1 {
		t.Error("remaining subscriber missed the event")
	}
}

func TestPublishProgressComputesFraction(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	var got *ProgressEvent
	bus.Listen(EventProgress, func(e Event) { got = e.(*ProgressEvent) })

	bus.PublishProgress("export", "students.csv", 25, 100)
	if got == nil || got.Progress != 0.25 || got.Operation != "export" {
		t.Fatalf("PublishProgress() event = %+v", got)
	}

	bus.PublishProgress("export", "students.csv", 0, 0)
	if got.Progress != 0 {
		t.Errorf("zero total should give zero progress, got %f", got.Progress)
	}
}
