package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
	"github.com/schoolroster/roster-client/internal/testutil/fakebackend"
)

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNav) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}

func newAPIClient(t *testing.T, srv *fakebackend.Server) *api.Client {
	t.Helper()
	cfg := config.NewConfig()
	cfg.APIURL = srv.URL
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	client, err := api.NewClient(cfg, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func collect(bus *events.EventBus) *[]*SessionChangedEvent {
	var got []*SessionChangedEvent
	bus.Listen(EventSessionChanged, func(e events.Event) {
		got = append(got, e.(*SessionChangedEvent))
	})
	return &got
}

func TestLoginPersistsToken(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()

	tokens := NewMemoryTokenStore("")
	bus := events.NewEventBus(10)
	changes := collect(bus)
	store := NewStore(tokens, newAPIClient(t, srv), nil, bus, nil)

	sess, err := store.Login(context.Background(), models.Credentials{Username: "admin", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !sess.Authenticated() || !store.Authenticated() {
		t.Fatal("session should be authenticated after login")
	}

	saved, err := tokens.Load()
	if err != nil || saved != sess.Token {
		t.Errorf("token store = %q, %v; want %q", saved, err, sess.Token)
	}
	if len(*changes) != 1 || !(*changes)[0].Authenticated || (*changes)[0].Reason != ReasonLogin {
		t.Errorf("events = %+v, want one login event", *changes)
	}
}

func TestLoginFailureLeavesSessionUnchanged(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()

	tokens := NewMemoryTokenStore("")
	store := NewStore(tokens, newAPIClient(t, srv), nil, nil, nil)

	_, err := store.Login(context.Background(), models.Credentials{Username: "admin", Password: "wrong-password"})
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
	if store.Authenticated() {
		t.Error("failed login must not authenticate")
	}
	if _, err := tokens.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Errorf("token store should stay empty, got %v", err)
	}
}

func TestLoginThrottledSurfacesRetryAfter(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()
	srv.BlockLogin = true
	srv.RetryAfter = 5

	store := NewStore(NewMemoryTokenStore(""), newAPIClient(t, srv), nil, nil, nil)
	_, err := store.Login(context.Background(), models.Credentials{Username: "admin", Password: "secret123"})

	var authErr *api.AuthError
	if !errors.As(err, &authErr) || authErr.Kind != api.TooManyAttempts {
		t.Fatalf("Login() error = %v, want TooManyAttempts", err)
	}
	if authErr.RetryAfter != 5 {
		t.Errorf("RetryAfter = %d, want 5", authErr.RetryAfter)
	}
}

func TestRestore(t *testing.T) {
	t.Run("saved token", func(t *testing.T) {
		bus := events.NewEventBus(10)
		changes := collect(bus)
		store := NewStore(NewMemoryTokenStore("tok-1"), nil, nil, bus, nil)
		if err := store.Restore(); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		token, ok := store.Token()
		if !ok || token != "tok-1" {
			t.Errorf("Token() = %q, %v", token, ok)
		}
		if len(*changes) != 1 || (*changes)[0].Reason != ReasonRestored {
			t.Errorf("events = %+v, want one restored event", *changes)
		}
	})

	t.Run("nothing saved", func(t *testing.T) {
		store := NewStore(NewMemoryTokenStore(""), nil, nil, nil, nil)
		if err := store.Restore(); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if store.Authenticated() {
			t.Error("should not be authenticated")
		}
	})
}

func TestLogoutClearsAndNavigates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := config.WriteTokenFile(path, "tok-1"); err != nil {
		t.Fatal(err)
	}

	nav := &recordingNav{}
	store := NewStore(NewFileTokenStore(path, nil), nil, nav, nil, nil)
	if err := store.Restore(); err != nil {
		t.Fatal(err)
	}

	if err := store.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if store.Authenticated() {
		t.Error("still authenticated after logout")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("token file should be removed, stat err = %v", err)
	}
	if nav.last() != navigation.RouteLogin {
		t.Errorf("navigated to %q, want %q", nav.last(), navigation.RouteLogin)
	}
}

func TestExpireOnRejectedToken(t *testing.T) {
	srv := fakebackend.New()
	defer srv.Close()

	bus := events.NewEventBus(10)
	changes := collect(bus)
	nav := &recordingNav{}
	client := newAPIClient(t, srv)
	store := NewStore(NewMemoryTokenStore("stale-token"), client, nav, bus, nil)
	client.SetTokenSource(store)
	client.SetUnauthorizedHandler(store.Expire)

	if err := store.Restore(); err != nil {
		t.Fatal(err)
	}

	_, err := client.ListStudents(context.Background(), models.ListQuery{Size: 5})
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("ListStudents() error = %v, want ErrUnauthorized", err)
	}
	if store.Authenticated() {
		t.Error("rejected token should end the session")
	}
	if nav.last() != navigation.RouteLogin {
		t.Errorf("navigated to %q, want login", nav.last())
	}
	last := (*changes)[len(*changes)-1]
	if last.Authenticated || last.Reason != ReasonExpired {
		t.Errorf("last event = %+v, want expired", last)
	}

	// A second expiry is a no-op.
	before := len(*changes)
	store.Expire()
	if len(*changes) != before {
		t.Error("Expire() on a signed-out store should not publish")
	}
}

func TestGuard(t *testing.T) {
	store := NewStore(NewMemoryTokenStore(""), nil, nil, nil, nil)

	tests := []struct {
		path string
		want string
	}{
		{navigation.RouteStudents, navigation.RouteLogin},
		{navigation.RouteLogin, ""},
		{navigation.RouteRegister, ""},
		{"/", navigation.RouteLogin},
	}
	for _, tt := range tests {
		if got := store.Guard(tt.path); got != tt.want {
			t.Errorf("signed out: Guard(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	store.set("tok", ReasonLogin)
	if got := store.Guard(navigation.RouteLogin); got != navigation.RouteStudents {
		t.Errorf("signed in: Guard(login) = %q, want students", got)
	}
	if got := store.Guard(navigation.RouteStudents); got != "" {
		t.Errorf("signed in: Guard(students) = %q, want allow", got)
	}
}

func TestGuardWithHistory(t *testing.T) {
	store := NewStore(NewMemoryTokenStore(""), nil, nil, nil, nil)
	history := navigation.NewHistory(nil, navigation.RouteLogin)
	history.SetGuard(store.Guard)

	history.Navigate("/students?page=2")
	if got := history.Current().Path; got != navigation.RouteLogin {
		t.Errorf("signed-out navigation landed on %q, want login", got)
	}
}

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore("")
	if err := s.Save(""); err == nil {
		t.Error("Save(\"\") should fail")
	}
	if err := s.Save("abc"); err != nil {
		t.Fatal(err)
	}
	if tok, err := s.Load(); err != nil || tok != "abc" {
		t.Errorf("Load() = %q, %v", tok, err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, config.ErrNoToken) {
		t.Errorf("Load() after Clear = %v, want ErrNoToken", err)
	}
}

func TestClosedStoreStopsPublishing(t *testing.T) {
	bus := events.NewEventBus(10)
	changes := collect(bus)
	store := NewStore(NewMemoryTokenStore("tok"), nil, nil, bus, nil)
	store.Close()
	_ = store.Restore()
	if len(*changes) != 0 {
		t.Errorf("closed store published %d events", len(*changes))
	}
}
