package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/schoolroster/roster-client/internal/events"
)

// Journal records import and export runs and publishes their lifecycle.
// It observes transfers; the Coordinator executes them.
type Journal struct {
	tasks     []*Task
	tasksByID map[string]*Task
	mu        sync.RWMutex

	eventBus *events.EventBus
}

// JournalStats counts tasks by state.
type JournalStats struct {
	Active    int
	Completed int
	Failed    int
	Cancelled int
}

// Total returns total number of tasks.
func (s JournalStats) Total() int {
	return s.Active + s.Completed + s.Failed + s.Cancelled
}

// NewJournal creates an empty journal. eventBus may be nil.
func NewJournal(eventBus *events.EventBus) *Journal {
	return &Journal{
		tasksByID: make(map[string]*Task),
		eventBus:  eventBus,
	}
}

// Track registers a new active task.
func (j *Journal) Track(taskType TaskType, name string, size int64) *Task {
	task := newTask(taskType, name, size)

	j.mu.Lock()
	j.tasks = append(j.tasks, task)
	j.tasksByID[task.ID] = task
	j.mu.Unlock()

	j.publish(EventTransferStarted, task)
	return task
}

// SetCancel stores the function Cancel calls for taskID.
func (j *Journal) SetCancel(taskID string, cancel context.CancelFunc) {
	j.mu.RLock()
	task := j.tasksByID[taskID]
	j.mu.RUnlock()
	if task == nil {
		return
	}
	task.mu.Lock()
	task.cancel = cancel
	task.mu.Unlock()
}

// UpdateBytes records bytes moved so far.
func (j *Journal) UpdateBytes(taskID string, bytes int64) {
	task := j.get(taskID)
	if task == nil {
		return
	}
	task.mu.Lock()
	if task.State != TaskActive {
		task.mu.Unlock()
		return
	}
	task.Bytes = bytes
	if task.Size > 0 {
		task.Progress = float64(bytes) / float64(task.Size)
		if task.Progress > 1 {
			task.Progress = 1
		}
	}
	task.mu.Unlock()

	j.publish(EventTransferProgress, task)
}

// Complete marks a task as successful.
func (j *Journal) Complete(taskID, message string) {
	j.finish(taskID, TaskCompleted, message, nil)
}

// Fail marks a task as failed.
func (j *Journal) Fail(taskID string, err error) {
	j.finish(taskID, TaskFailed, "", err)
}

// Cancel stops an active task.
func (j *Journal) Cancel(taskID string) error {
	task := j.get(taskID)
	if task == nil {
		return errors.New("task not found")
	}

	task.mu.RLock()
	state := task.State
	cancel := task.cancel
	task.mu.RUnlock()

	if state != TaskActive {
		return errors.New("task is not active")
	}
	if cancel != nil {
		cancel()
	}
	j.finish(taskID, TaskCancelled, "", context.Canceled)
	return nil
}

// CancelAll cancels every active task.
func (j *Journal) CancelAll() {
	for _, task := range j.snapshot() {
		if task.GetState() == TaskActive {
			_ = j.Cancel(task.ID)
		}
	}
}

func (j *Journal) finish(taskID string, state TaskState, message string, err error) {
	task := j.get(taskID)
	if task == nil {
		return
	}

	task.mu.Lock()
	if task.State != TaskActive {
		task.mu.Unlock()
		return
	}
	task.State = state
	task.Message = message
	task.Error = err
	task.CompletedAt = time.Now()
	task.cancel = nil
	if state == TaskCompleted {
		task.Progress = 1
	}
	task.mu.Unlock()

	switch state {
	case TaskCompleted:
		j.publish(EventTransferCompleted, task)
	case TaskFailed:
		j.publish(EventTransferFailed, task)
	case TaskCancelled:
		j.publish(EventTransferCancelled, task)
	}
}

// ClearFinished drops completed, failed and cancelled tasks.
func (j *Journal) ClearFinished() {
	j.mu.Lock()
	defer j.mu.Unlock()

	kept := make([]*Task, 0, len(j.tasks))
	for _, task := range j.tasks {
		if task.IsTerminal() {
			delete(j.tasksByID, task.ID)
			continue
		}
		kept = append(kept, task)
	}
	j.tasks = kept
}

// Stats counts tasks by state.
func (j *Journal) Stats() JournalStats {
	var stats JournalStats
	for _, task := range j.snapshot() {
		switch task.GetState() {
		case TaskActive:
			stats.Active++
		case TaskCompleted:
			stats.Completed++
		case TaskFailed:
			stats.Failed++
		case TaskCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Tasks returns copies of all tasks in creation order.
func (j *Journal) Tasks() []Task {
	tasks := j.snapshot()
	out := make([]Task, len(tasks))
	for i, task := range tasks {
		out[i] = task.Clone()
	}
	return out
}

// Task returns a copy of one task.
func (j *Journal) Task(taskID string) (Task, bool) {
	task := j.get(taskID)
	if task == nil {
		return Task{}, false
	}
	return task.Clone(), true
}

func (j *Journal) get(taskID string) *Task {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.tasksByID[taskID]
}

func (j *Journal) snapshot() []*Task {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]*Task(nil), j.tasks...)
}

func (j *Journal) publish(eventType events.EventType, task *Task) {
	if j.eventBus == nil {
		return
	}
	snap := task.Clone()
	j.eventBus.Publish(&TransferEvent{
		BaseEvent: events.NewBase(eventType),
		TaskID:    snap.ID,
		TaskType:  snap.Type,
		Name:      snap.Name,
		Size:      snap.Size,
		Progress:  snap.Progress,
		Bytes:     snap.Bytes,
		Message:   snap.Message,
		Error:     snap.Error,
	})
}
