package throttle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
	"github.com/schoolroster/roster-client/internal/session"
	"github.com/schoolroster/roster-client/internal/testutil/fakebackend"
	"github.com/schoolroster/roster-client/internal/validation"
)

type authFunc func(ctx context.Context, creds models.Credentials) (models.Session, error)

func (f authFunc) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	return f(ctx, creds)
}

func failWith(err error) authFunc {
	return func(context.Context, models.Credentials) (models.Session, error) {
		return models.Session{}, err
	}
}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

var validCreds = models.Credentials{Username: "admin", Password: "secret123"}

// watch returns a channel receiving every snapshot the machine publishes.
func watch(bus *events.EventBus) <-chan Snapshot {
	ch := make(chan Snapshot, 100)
	bus.Listen(EventThrottleChanged, func(e events.Event) {
		ch <- e.(*ThrottleChangedEvent).Snapshot
	})
	return ch
}

func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for throttle event")
		return Snapshot{}
	}
}

func TestCountdownFromRetryAfter(t *testing.T) {
	mock := clock.NewMock()
	bus := events.NewEventBus(10)
	ch := watch(bus)
	m := New(failWith(&api.AuthError{Kind: api.TooManyAttempts, RetryAfter: 5}), nil, bus, mock, nil)
	defer m.Close()

	err := m.Submit(context.Background(), validCreds)
	if !errors.Is(err, api.ErrTooManyAttempts) {
		t.Fatalf("Submit() error = %v, want ErrTooManyAttempts", err)
	}

	if s := next(t, ch); s.State != Submitting {
		t.Fatalf("first event state = %s, want submitting", s.State)
	}
	s := next(t, ch)
	if s.State != Blocked || s.RemainingSeconds != 5 || s.Message != MessageTooManyAttempts {
		t.Fatalf("blocked snapshot = %+v", s)
	}
	if ts := m.ThrottleState(); !ts.Active || ts.RemainingSeconds != 5 {
		t.Errorf("ThrottleState() = %+v", ts)
	}

	for want := 4; want >= 0; want-- {
		mock.Add(time.Second)
		s := next(t, ch)
		if s.RemainingSeconds != want {
			t.Fatalf("remaining = %d, want %d", s.RemainingSeconds, want)
		}
		if want > 0 && s.State != Blocked {
			t.Fatalf("at %d state = %s, want blocked", want, s.State)
		}
	}

	final := m.Snapshot()
	if final.State != Idle || final.RemainingSeconds != 0 || final.Message != "" {
		t.Errorf("final snapshot = %+v, want idle with no message", final)
	}

	// The ticker is gone: further time produces nothing.
	mock.Add(5 * time.Second)
	select {
	case s := <-ch:
		t.Errorf("unexpected event after countdown: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitWhileBlocked(t *testing.T) {
	mock := clock.NewMock()
	calls := 0
	auth := authFunc(func(context.Context, models.Credentials) (models.Session, error) {
		calls++
		return models.Session{}, &api.AuthError{Kind: api.TooManyAttempts, RetryAfter: 60, Message: "Too many login attempts. Please try again in 60 seconds."}
	})
	m := New(auth, nil, nil, mock, nil)
	defer m.Close()

	_ = m.Submit(context.Background(), validCreds)
	if s := m.Snapshot(); s.Message != "Too many login attempts. Please try again in 60 seconds." {
		t.Errorf("message = %q, want the server's", s.Message)
	}

	if err := m.Submit(context.Background(), validCreds); !errors.Is(err, ErrBlocked) {
		t.Errorf("Submit() while blocked = %v, want ErrBlocked", err)
	}
	if calls != 1 {
		t.Errorf("authenticator called %d times, want 1", calls)
	}
	if s := m.Snapshot(); s.State != Blocked || s.RemainingSeconds != 60 {
		t.Errorf("snapshot = %+v, want Blocked(60)", s)
	}
}

func TestSubmitOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"unauthorized", &api.AuthError{Kind: api.Unauthorized, Message: "Bad credentials"}, MessageInvalidCredentials},
		{"server error", &api.ServerError{StatusCode: 500}, MessageUnexpected},
		{"network", &api.ServerError{Err: errors.New("connection refused")}, MessageUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := &recordingNav{}
			m := New(failWith(tt.err), nav, nil, clock.NewMock(), nil)
			defer m.Close()

			if err := m.Submit(context.Background(), validCreds); !errors.Is(err, tt.err) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.err)
			}
			s := m.Snapshot()
			if s.State != Idle || s.Message != tt.wantMsg {
				t.Errorf("snapshot = %+v, want Idle with %q", s, tt.wantMsg)
			}
			if len(nav.paths) != 0 {
				t.Errorf("failed login navigated to %v", nav.paths)
			}
		})
	}
}

func TestSubmitSuccessNavigates(t *testing.T) {
	nav := &recordingNav{}
	auth := authFunc(func(context.Context, models.Credentials) (models.Session, error) {
		return models.Session{Token: "tok"}, nil
	})
	m := New(auth, nav, nil, clock.NewMock(), nil)
	defer m.Close()

	if err := m.Submit(context.Background(), validCreds); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if s := m.Snapshot(); s.State != Idle || s.Message != "" {
		t.Errorf("snapshot = %+v", s)
	}
	if len(nav.paths) != 1 || nav.paths[0] != navigation.RouteStudents {
		t.Errorf("navigated to %v, want [%s]", nav.paths, navigation.RouteStudents)
	}
}

func TestInvalidCredentialsStayIdle(t *testing.T) {
	called := false
	auth := authFunc(func(context.Context, models.Credentials) (models.Session, error) {
		called = true
		return models.Session{}, nil
	})
	m := New(auth, nil, nil, clock.NewMock(), nil)
	defer m.Close()

	for _, creds := range []models.Credentials{
		{Username: "ab", Password: "secret123"},
		{Username: "admin", Password: "123"},
		{Username: "   ", Password: "secret123"},
	} {
		err := m.Submit(context.Background(), creds)
		if !validation.IsValidationError(err) {
			t.Errorf("Submit(%+v) error = %v, want validation error", creds, err)
		}
		if s := m.Snapshot(); s.State != Idle {
			t.Errorf("state = %s, want idle", s.State)
		}
	}
	if called {
		t.Error("invalid credentials reached the authenticator")
	}
}

func TestNewBlockReplacesTicker(t *testing.T) {
	mock := clock.NewMock()
	bus := events.NewEventBus(10)
	ch := watch(bus)
	m := New(failWith(&api.AuthError{Kind: api.TooManyAttempts, RetryAfter: 3}), nil, bus, mock, nil)
	defer m.Close()

	_ = m.Submit(context.Background(), validCreds)
	next(t, ch)
	next(t, ch)

	m.mu.Lock()
	firstGen := m.gen
	m.blockLocked(2)
	m.mu.Unlock()

	// A tick carrying the old generation is ignored.
	m.tick(firstGen)
	if s := m.Snapshot(); s.RemainingSeconds != 2 {
		t.Errorf("stale tick changed remaining to %d", s.RemainingSeconds)
	}

	mock.Add(time.Second)
	if s := next(t, ch); s.RemainingSeconds != 1 {
		t.Errorf("remaining = %d, want 1", s.RemainingSeconds)
	}
	mock.Add(time.Second)
	if s := next(t, ch); s.State != Idle || s.RemainingSeconds != 0 {
		t.Errorf("snapshot = %+v, want idle at 0", s)
	}
}

func TestCloseStopsCountdown(t *testing.T) {
	mock := clock.NewMock()
	bus := events.NewEventBus(10)
	ch := watch(bus)
	m := New(failWith(&api.AuthError{Kind: api.TooManyAttempts, RetryAfter: 10}), nil, bus, mock, nil)

	_ = m.Submit(context.Background(), validCreds)
	next(t, ch)
	next(t, ch)

	m.Close()
	mock.Add(3 * time.Second)
	select {
	case s := <-ch:
		t.Errorf("event after Close: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
	if err := m.Submit(context.Background(), validCreds); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close = %v, want ErrClosed", err)
	}
}

func TestLoginThrottledByBackendDefaultsTo60(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()
	srv.BlockLogin = true
	srv.RetryAfter = 0

	cfg := config.NewConfig()
	cfg.APIURL = srv.URL
	cfg.RequestsPerSecond = 1000
	client, err := api.NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	store := session.NewStore(session.NewMemoryTokenStore(""), client, nil, nil, nil)
	m := New(store, nil, nil, clock.NewMock(), nil)
	defer m.Close()

	_ = m.Submit(context.Background(), validCreds)
	if s := m.Snapshot(); s.State != Blocked || s.RemainingSeconds != 60 {
		t.Errorf("snapshot = %+v, want Blocked(60)", s)
	}
	if store.Authenticated() {
		t.Error("throttled login must not authenticate")
	}
}

func TestLoginAgainstBackend(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.APIURL = srv.URL
	cfg.RequestsPerSecond = 1000
	client, err := api.NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	store := session.NewStore(session.NewMemoryTokenStore(""), client, nil, nil, nil)
	nav := &recordingNav{}
	m := New(store, nav, nil, clock.NewMock(), nil)
	defer m.Close()

	_ = m.Submit(context.Background(), models.Credentials{Username: "admin", Password: "wrong-pass"})
	if s := m.Snapshot(); s.Message != MessageInvalidCredentials {
		t.Errorf("message = %q", s.Message)
	}

	if err := m.Submit(context.Background(), validCreds); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !store.Authenticated() {
		t.Error("store should be authenticated")
	}
	if len(nav.paths) != 1 || nav.paths[0] != navigation.RouteStudents {
		t.Errorf("navigated to %v", nav.paths)
	}
}
