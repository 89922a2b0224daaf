package transfer

import (
	"github.com/schoolroster/roster-client/internal/events"
)

// Transfer event types
const (
	EventTransferStarted   events.EventType = "transfer_started"
	EventTransferProgress  events.EventType = "transfer_progress"
	EventTransferCompleted events.EventType = "transfer_completed"
	EventTransferFailed    events.EventType = "transfer_failed"
	EventTransferCancelled events.EventType = "transfer_cancelled"
)

// TransferEvent carries a task snapshot.
type TransferEvent struct {
	events.BaseEvent
	TaskID   string
	TaskType TaskType
	Name     string
	Size     int64
	Progress float64
	Bytes    int64
	Message  string
	Error    error
}
