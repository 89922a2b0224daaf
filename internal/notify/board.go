package notify

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/schoolroster/roster-client/internal/constants"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/logging"
)

// Board holds the single notice currently shown. A new notice replaces the
// previous one; transient notices clear after constants.NoticeClearDelay
// unless replaced first.
type Board struct {
	mu      sync.Mutex
	current *Notice
	nextID  uint64
	timer   *clock.Timer
	closed  bool

	clock   clock.Clock
	delay   time.Duration
	bus     *events.EventBus
	desktop *Notifier
	logger  *logging.Logger
}

// NewBoard creates an empty board. clk may be nil for the wall clock;
// bus and desktop may be nil.
func NewBoard(bus *events.EventBus, clk clock.Clock, desktop *Notifier, logger *logging.Logger) *Board {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Board{
		clock:   clk,
		delay:   constants.NoticeClearDelay,
		bus:     bus,
		desktop: desktop,
		logger:  logger,
	}
}

// Info shows a persistent informational notice, e.g. "Importing...".
func (b *Board) Info(message string) Notice {
	return b.Post(KindInfo, message, false)
}

// Success shows a transient success notice.
func (b *Board) Success(message string) Notice {
	return b.Post(KindSuccess, message, true)
}

// Error shows a persistent error notice.
func (b *Board) Error(message string) Notice {
	return b.Post(KindError, message, false)
}

// Post replaces the current notice.
func (b *Board) Post(kind Kind, message string, transient bool) Notice {
	b.mu.Lock()
	b.nextID++
	n := Notice{
		ID:        b.nextID,
		Kind:      kind,
		Message:   message,
		Transient: transient,
		Posted:    b.clock.Now(),
	}
	if b.closed {
		b.mu.Unlock()
		return n
	}
	b.stopTimerLocked()
	b.current = &n
	if transient {
		id := n.ID
		b.timer = b.clock.AfterFunc(b.delay, func() { b.clear(id) })
	}
	b.mu.Unlock()

	switch kind {
	case KindError:
		b.logger.Warn().Str("notice", message).Msg("Error notice")
	default:
		b.logger.Debug().Str("kind", kind.String()).Str("notice", message).Msg("Notice")
	}

	b.publish(NewNoticeEvent(n, false))
	if b.desktop != nil && kind != KindInfo {
		b.desktop.Mirror(n)
	}
	return n
}

// Current returns the displayed notice, if any.
func (b *Board) Current() (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return Notice{}, false
	}
	return *b.current, true
}

// Dismiss clears whatever is shown.
func (b *Board) Dismiss() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	id := b.current.ID
	b.mu.Unlock()
	b.clear(id)
}

// clear removes notice id if it is still the one shown.
func (b *Board) clear(id uint64) {
	b.mu.Lock()
	if b.closed || b.current == nil || b.current.ID != id {
		b.mu.Unlock()
		return
	}
	cleared := *b.current
	b.current = nil
	b.stopTimerLocked()
	b.mu.Unlock()

	b.publish(NewNoticeEvent(cleared, true))
}

func (b *Board) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Board) publish(e events.Event) {
	if b.bus != nil {
		b.bus.Publish(e)
	}
}

// Close cancels any pending auto-clear.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.stopTimerLocked()
}
