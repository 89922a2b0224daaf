package throttle

import (
	"github.com/schoolroster/roster-client/internal/events"
)

// EventThrottleChanged is published on every transition and every countdown tick.
const EventThrottleChanged events.EventType = "throttle_changed"

// State is the login form's submission state.
type State int

const (
	Idle State = iota
	Submitting
	Blocked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	MessageInvalidCredentials = "Invalid username or password"
	MessageTooManyAttempts    = "Too many login attempts"
	MessageUnexpected         = "An unexpected error occurred"
)

// Snapshot is a consistent view of the machine.
type Snapshot struct {
	State            State
	RemainingSeconds int
	Message          string
}

// ThrottleChangedEvent carries the snapshot after a change.
type ThrottleChangedEvent struct {
	events.BaseEvent
	Snapshot
}

// NewThrottleChangedEvent creates a new ThrottleChangedEvent.
func NewThrottleChangedEvent(s Snapshot) *ThrottleChangedEvent {
	return &ThrottleChangedEvent{
		BaseEvent: events.NewBase(EventThrottleChanged),
		Snapshot:  s,
	}
}
