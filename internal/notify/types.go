package notify

import (
	"time"

	"github.com/schoolroster/roster-client/internal/events"
)

// EventNotice is published when the displayed notice changes.
const EventNotice events.EventType = "notice"

// Kind is the severity of a notice.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is one message shown to the user.
type Notice struct {
	ID      uint64
	Kind    Kind
	Message string
	// Transient notices clear themselves after a delay.
	Transient bool
	Posted    time.Time
}

// NoticeEvent carries the notice now displayed. Cleared is set when the board became empty.
type NoticeEvent struct {
	events.BaseEvent
	Notice  Notice
	Cleared bool
}

// NewNoticeEvent creates a new NoticeEvent.
func NewNoticeEvent(n Notice, cleared bool) *NoticeEvent {
	return &NoticeEvent{
		BaseEvent: events.NewBase(EventNotice),
		Notice:    n,
		Cleared:   cleared,
	}
}
