// Package state provides observable state containers for the roster client.
// Containers publish events on change so any frontend (the CLI pager, tests)
// can subscribe and redraw.
package state

import (
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/models"
)

// State event types
const (
	EventStudentListChanged events.EventType = "student_list_changed"
	EventStudentListLoading events.EventType = "student_list_loading"
	EventStudentListError   events.EventType = "student_list_error"
	EventQueryChanged       events.EventType = "query_changed"
)

// StudentListChangedEvent is published when a fetched page is applied.
type StudentListChangedEvent struct {
	events.BaseEvent
	Query models.ListQuery
	Page  models.Page[models.Student]
}

// StudentListLoadingEvent is published when a reload starts or finishes.
type StudentListLoadingEvent struct {
	events.BaseEvent
	Query   models.ListQuery
	Loading bool
}

// StudentListErrorEvent is published when a reload fails. The previous page stays displayed.
type StudentListErrorEvent struct {
	events.BaseEvent
	Query models.ListQuery
	Error error
}

// QueryChangedEvent is published when the list query changes, before the reload it triggers.
type QueryChangedEvent struct {
	events.BaseEvent
	Query models.ListQuery
}

// NewStudentListChangedEvent creates a new StudentListChangedEvent.
func NewStudentListChangedEvent(q models.ListQuery, page models.Page[models.Student]) *StudentListChangedEvent {
	return &StudentListChangedEvent{
		BaseEvent: events.NewBase(EventStudentListChanged),
		Query:     q,
		Page:      page,
	}
}

// NewStudentListLoadingEvent creates a new StudentListLoadingEvent.
func NewStudentListLoadingEvent(q models.ListQuery, loading bool) *StudentListLoadingEvent {
	return &StudentListLoadingEvent{
		BaseEvent: events.NewBase(EventStudentListLoading),
		Query:     q,
		Loading:   loading,
	}
}

// NewStudentListErrorEvent creates a new StudentListErrorEvent.
func NewStudentListErrorEvent(q models.ListQuery, err error) *StudentListErrorEvent {
	return &StudentListErrorEvent{
		BaseEvent: events.NewBase(EventStudentListError),
		Query:     q,
		Error:     err,
	}
}

// NewQueryChangedEvent creates a new QueryChangedEvent.
func NewQueryChangedEvent(q models.ListQuery) *QueryChangedEvent {
	return &QueryChangedEvent{
		BaseEvent: events.NewBase(EventQueryChanged),
		Query:     q,
	}
}
