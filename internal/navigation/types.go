package navigation

import (
	"github.com/schoolroster/roster-client/internal/events"
)

// EventNavigated is published after every location change.
const EventNavigated events.EventType = "navigated"

// Origin says who moved the history cursor.
type Origin int

const (
	// OriginPush is a new entry (link follow, redirect).
	OriginPush Origin = iota
	// OriginReplace rewrites the current entry in place.
	OriginReplace
	// OriginPop is a back/forward step.
	OriginPop
)

func (o Origin) String() string {
	switch o {
	case OriginPush:
		return "push"
	case OriginReplace:
		return "replace"
	case OriginPop:
		return "pop"
	default:
		return "unknown"
	}
}

// NavigatedEvent is published when the current location changes.
type NavigatedEvent struct {
	events.BaseEvent
	Location Location
	Origin   Origin
	// Writer tags the component that issued the change, if it set one.
	Writer string
}

// NewNavigatedEvent creates a new NavigatedEvent.
func NewNavigatedEvent(loc Location, origin Origin, writer string) *NavigatedEvent {
	return &NavigatedEvent{
		BaseEvent: events.NewBase(EventNavigated),
		Location:  loc,
		Origin:    origin,
		Writer:    writer,
	}
}
