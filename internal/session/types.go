package session

import (
	"github.com/schoolroster/roster-client/internal/events"
)

// EventSessionChanged is published on every authentication transition.
const EventSessionChanged events.EventType = "session_changed"

// Reasons carried by SessionChangedEvent.
const (
	ReasonRestored = "restored"
	ReasonLogin    = "login"
	ReasonLogout   = "logout"
	ReasonExpired  = "expired"
)

// SessionChangedEvent is published when the session becomes authenticated or not.
type SessionChangedEvent struct {
	events.BaseEvent
	Authenticated bool
	Reason        string
}

// NewSessionChangedEvent creates a new SessionChangedEvent.
func NewSessionChangedEvent(authenticated bool, reason string) *SessionChangedEvent {
	return &SessionChangedEvent{
		BaseEvent:     events.NewBase(EventSessionChanged),
		Authenticated: authenticated,
		Reason:        reason,
	}
}
