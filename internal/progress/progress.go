// Package progress reports byte progress of CSV imports and exports, either
// as a terminal progress bar or as events on the bus.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/schoolroster/roster-client/internal/events"
)

// Reporter is the interface for reporting progress.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements progress reporting with a terminal progress bar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a progress bar on stderr.
func NewCLIProgress() *CLIProgress {
	return NewCLIProgressTo(os.Stderr)
}

// NewCLIProgressTo creates a progress bar writing to w.
func NewCLIProgressTo(w io.Writer) *CLIProgress {
	return &CLIProgress{out: w}
}

// ForTerminal returns a CLIProgress when stderr is a terminal and a no-op otherwise.
func ForTerminal() Reporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return NewCLIProgress()
	}
	return NewNoOpProgress()
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// EventProgress publishes progress on the event bus.
type EventProgress struct {
	eventBus  *events.EventBus
	operation string
	name      string
	total     int64
}

// NewEventProgress creates a reporter for one operation ("import" or "export") on name.
func NewEventProgress(eventBus *events.EventBus, operation, name string) *EventProgress {
	return &EventProgress{
		eventBus:  eventBus,
		operation: operation,
		name:      name,
	}
}

// Start publishes a zero-progress event.
func (p *EventProgress) Start(total int64, description string) {
	p.total = total
	p.eventBus.Publish(&events.ProgressEvent{
		BaseEvent:  events.NewBase(events.EventProgress),
		Operation:  p.operation,
		Name:       p.name,
		BytesTotal: total,
		Message:    description,
	})
}

// Update publishes progress.
func (p *EventProgress) Update(current int64) {
	p.eventBus.PublishProgress(p.operation, p.name, current, p.total)
}

// Finish publishes completion.
func (p *EventProgress) Finish() {
	p.eventBus.PublishProgress(p.operation, p.name, p.total, p.total)
}

// Error publishes an error event.
func (p *EventProgress) Error(err error) {
	if err != nil {
		p.eventBus.PublishError("progress", p.operation, err)
	}
}

// SetDescription publishes the new stage text.
func (p *EventProgress) SetDescription(desc string) {
	p.eventBus.Publish(&events.ProgressEvent{
		BaseEvent: events.NewBase(events.EventProgress),
		Operation: p.operation,
		Name:      p.name,
		Message:   desc,
	})
}

// NoOpProgress is a progress reporter that does nothing.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	total    int64
	current  atomic.Int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
		total:    total,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.reporter.Update(pr.current.Add(int64(n)))
	}
	return n, err
}

// Current returns the number of bytes read so far.
func (pr *ProgressReader) Current() int64 {
	return pr.current.Load()
}
