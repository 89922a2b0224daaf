// Package throttle implements the login form's submit state machine,
// including the countdown shown while the backend is refusing logins.
package throttle

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/constants"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
	"github.com/schoolroster/roster-client/internal/validation"
)

var (
	// ErrBlocked is returned by Submit during a lockout countdown.
	ErrBlocked = errors.New("login is temporarily blocked")
	// ErrSubmitting is returned by Submit while a previous submission is in flight.
	ErrSubmitting = errors.New("login already in progress")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("throttle machine closed")
)

// Authenticator performs the login. *session.Store implements it.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (models.Session, error)
}

// Navigator moves to a route after a successful login.
type Navigator interface {
	Navigate(path string)
}

// Machine is the login throttle state machine. At most one countdown
// ticker runs at a time.
type Machine struct {
	mu        sync.Mutex
	state     State
	remaining int
	message   string
	closed    bool

	clock  clock.Clock
	ticker *clock.Ticker
	stop   chan struct{}
	gen    uint64

	auth   Authenticator
	nav    Navigator
	bus    *events.EventBus
	logger *logging.Logger
}

// New creates an Idle machine. clk may be nil for the wall clock; nav and bus may be nil.
func New(auth Authenticator, nav Navigator, bus *events.EventBus, clk clock.Clock, logger *logging.Logger) *Machine {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Machine{
		clock:  clk,
		auth:   auth,
		nav:    nav,
		bus:    bus,
		logger: logger,
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// ThrottleState is the view the submit button renders from.
func (m *Machine) ThrottleState() models.ThrottleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.ThrottleState{
		Active:           m.state == Blocked,
		RemainingSeconds: m.remaining,
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, RemainingSeconds: m.remaining, Message: m.message}
}

// Submit runs one login attempt. Invalid credentials never reach the network
// and leave the machine Idle. The returned error is the validation or
// gateway error; the user-facing text is in Snapshot().Message.
func (m *Machine) Submit(ctx context.Context, creds models.Credentials) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.state == Blocked:
		m.mu.Unlock()
		return ErrBlocked
	case m.state == Submitting:
		m.mu.Unlock()
		return ErrSubmitting
	}

	if err := validation.Credentials(creds); err != nil {
		m.message = err.Error()
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.publish(snap)
		return err
	}

	m.state = Submitting
	m.message = ""
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	_, err := m.auth.Login(ctx, creds)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return err
	}
	var authErr *api.AuthError
	switch {
	case err == nil:
		m.state = Idle
		m.message = ""
	case errors.As(err, &authErr) && authErr.Kind == api.TooManyAttempts:
		m.message = api.Message(err)
		if m.message == "" {
			m.message = MessageTooManyAttempts
		}
		m.blockLocked(authErr.RetryAfter)
		m.logger.Warn().Int("retry_after", m.remaining).Msg("Login throttled by server")
	case errors.As(err, &authErr):
		m.state = Idle
		m.message = MessageInvalidCredentials
	default:
		m.state = Idle
		m.message = MessageUnexpected
		m.logger.Error().Err(err).Msg("Login failed")
	}
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	if err == nil && m.nav != nil {
		m.nav.Navigate(navigation.RouteStudents)
	}
	return err
}

func (m *Machine) blockLocked(seconds int) {
	if seconds <= 0 {
		seconds = int(constants.DefaultRetryAfter.Seconds())
	}
	m.state = Blocked
	m.remaining = seconds
	m.startTickerLocked()
}

func (m *Machine) startTickerLocked() {
	m.stopTickerLocked()

	m.gen++
	ticker := m.clock.Ticker(constants.ThrottleTickInterval)
	stop := make(chan struct{})
	m.ticker = ticker
	m.stop = stop

	go m.run(ticker, stop, m.gen)
}

func (m *Machine) stopTickerLocked() {
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.ticker = nil
	m.stop = nil
}

func (m *Machine) run(ticker *clock.Ticker, stop <-chan struct{}, gen uint64) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick(gen)
		}
	}
}

// tick decrements the countdown. Ticks from a stopped ticker are ignored.
func (m *Machine) tick(gen uint64) {
	m.mu.Lock()
	if m.closed || m.state != Blocked || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.remaining--
	if m.remaining <= 0 {
		m.remaining = 0
		m.state = Idle
		m.message = ""
		m.stopTickerLocked()
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

func (m *Machine) publish(s Snapshot) {
	if m.bus != nil {
		m.bus.Publish(NewThrottleChangedEvent(s))
	}
}

// Close stops the countdown. Further submissions fail with ErrClosed.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTickerLocked()
}
