// Package transfer coordinates the bulk CSV operations: importing a roster
// file and exporting the whole roster. Each run is tracked as a task in a
// journal that publishes its lifecycle on the event bus.
package transfer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TaskType says which way the CSV moves.
type TaskType string

const (
	TaskImport TaskType = "import"
	TaskExport TaskType = "export"
)

// TaskState represents the current state of a transfer task.
type TaskState string

const (
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Task is one import or export run.
type Task struct {
	ID   string
	Type TaskType
	Name string // file name
	Size int64  // bytes, 0 when unknown up front (exports)

	State    TaskState
	Progress float64 // 0.0 to 1.0
	Bytes    int64
	Message  string // backend confirmation on success
	Error    error

	StartedAt   time.Time
	CompletedAt time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
}

func newTask(taskType TaskType, name string, size int64) *Task {
	return &Task{
		ID:        generateTaskID(),
		Type:      taskType,
		Name:      name,
		Size:      size,
		State:     TaskActive,
		StartedAt: time.Now(),
	}
}

// GetState returns the current state.
func (t *Task) GetState() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// IsTerminal reports whether the task has finished one way or another.
func (t *Task) IsTerminal() bool {
	state := t.GetState()
	return state == TaskCompleted || state == TaskFailed || state == TaskCancelled
}

// Clone returns a copy of the task's public state.
func (t *Task) Clone() Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Task{
		ID:          t.ID,
		Type:        t.Type,
		Name:        t.Name,
		Size:        t.Size,
		State:       t.State,
		Progress:    t.Progress,
		Bytes:       t.Bytes,
		Message:     t.Message,
		Error:       t.Error,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// Duration returns how long the task ran (so far, if still active).
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

var taskCounter atomic.Uint64

func generateTaskID() string {
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102T150405"), taskCounter.Add(1))
}
