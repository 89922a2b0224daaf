// Package events provides the publish/subscribe bus that ties the roster
// client's components together. Components publish typed events; frontends
// either drain buffered channels or register synchronous listeners.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/schoolroster/roster-client/internal/constants"
)

// EventType names a kind of event. Each package declares its own.
type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
)

// Event is implemented by everything published on the bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent carries the fields every event has. Embed it.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBase stamps a BaseEvent with the current time.
func NewBase(eventType EventType) BaseEvent {
	return BaseEvent{EventType: eventType, Time: time.Now()}
}

// ProgressEvent reports byte progress of an import or export.
type ProgressEvent struct {
	BaseEvent
	Operation    string // "import" or "export"
	Name         string
	Progress     float64 // 0.0 to 1.0
	BytesCurrent int64
	BytesTotal   int64
	Message      string
}

// ErrorEvent reports a failed operation.
type ErrorEvent struct {
	BaseEvent
	Component string
	Operation string
	Error     error
}

// Listener is called synchronously from Publish.
type Listener func(Event)

type listener struct {
	id        uint64
	eventType EventType // "" matches every type
	fn        Listener
}

// EventBus fans events out to buffered channel subscribers and synchronous
// listeners. The zero value is not usable; call NewEventBus.
type EventBus struct {
	mu         sync.RWMutex
	channels   map[EventType][]chan Event
	listeners  []listener
	nextID     uint64
	bufferSize int
	closed     bool
	dropped    atomic.Int64
}

// NewEventBus creates a bus whose subscription channels hold bufferSize events.
func NewEventBus(bufferSize int) *EventBus {
	switch {
	case bufferSize <= 0:
		bufferSize = constants.EventBusDefaultBuffer
	case bufferSize > constants.EventBusMaxBuffer:
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		channels:   make(map[EventType][]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel receiving events of one type. Events that do
// not fit in the buffer are dropped and counted. After Close the channel is
// closed.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, eb.bufferSize)
	eb.channels[eventType] = append(eb.channels[eventType], ch)
	return ch
}

// Unsubscribe stops delivery to ch. The channel is not closed.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.channels[eventType]
	for i, c := range subs {
		if c == ch {
			eb.channels[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Listen registers fn to be called synchronously for every event of the given
// type. All listeners have run by the time Publish returns. The returned func
// removes the listener.
func (eb *EventBus) Listen(eventType EventType, fn Listener) (cancel func()) {
	return eb.addListener(eventType, fn)
}

// ListenAll registers fn for every event type.
func (eb *EventBus) ListenAll(fn Listener) (cancel func()) {
	return eb.addListener("", fn)
}

func (eb *EventBus) addListener(eventType EventType, fn Listener) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return func() {}
	}
	eb.nextID++
	id := eb.nextID
	eb.listeners = append(eb.listeners, listener{id: id, eventType: eventType, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { eb.removeListener(id) })
	}
}

func (eb *EventBus) removeListener(id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for i, l := range eb.listeners {
		if l.id == id {
			// Listeners run in registration order
			eb.listeners = append(eb.listeners[:i:i], eb.listeners[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to channel subscribers (non-blocking) and then to
// synchronous listeners. Listeners run without the bus lock held, so they may
// publish further events. A listener added during Publish first sees the next
// event.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	if eb.closed {
		eb.mu.RUnlock()
		return
	}
	for _, ch := range eb.channels[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
	var matched []Listener
	for _, l := range eb.listeners {
		if l.eventType == "" || l.eventType == event.Type() {
			matched = append(matched, l.fn)
		}
	}
	eb.mu.RUnlock()

	for _, fn := range matched {
		fn(event)
	}
}

// PublishProgress publishes a ProgressEvent, deriving the fraction from the byte counts.
func (eb *EventBus) PublishProgress(operation, name string, current, total int64) {
	var fraction float64
	if total > 0 {
		fraction = float64(current) / float64(total)
	}
	eb.Publish(&ProgressEvent{
		BaseEvent:    NewBase(EventProgress),
		Operation:    operation,
		Name:         name,
		Progress:     fraction,
		BytesCurrent: current,
		BytesTotal:   total,
	})
}

// PublishError publishes an ErrorEvent.
func (eb *EventBus) PublishError(component, operation string, err error) {
	eb.Publish(&ErrorEvent{
		BaseEvent: NewBase(EventError),
		Component: component,
		Operation: operation,
		Error:     err,
	})
}

// Dropped returns how many channel deliveries were skipped because a
// subscriber's buffer was full.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// Close closes every subscription channel and forgets all listeners.
// Later publishes are ignored.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	eb.listeners = nil
	for _, subs := range eb.channels {
		for _, ch := range subs {
			close(ch)
		}
	}
	eb.channels = nil
}
