// Package session owns the authenticated identity: the bearer token, its
// persistence across runs, and the transitions between signed in and out.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
)

// Authenticator exchanges credentials for a token. *api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
}

// Navigator moves the application to a route. *navigation.History implements it.
type Navigator interface {
	Navigate(path string)
}

// Store is the session store. It is safe for concurrent use; the lock is
// never held across a network call or while publishing.
type Store struct {
	mu      sync.RWMutex
	session models.Session
	closed  bool

	tokens TokenStore
	auth   Authenticator
	nav    Navigator
	bus    *events.EventBus
	logger *logging.Logger
}

// NewStore creates an unauthenticated store. Call Restore to pick up a saved token.
// nav and bus may be nil.
func NewStore(tokens TokenStore, auth Authenticator, nav Navigator, bus *events.EventBus, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		tokens: tokens,
		auth:   auth,
		nav:    nav,
		bus:    bus,
		logger: logger,
	}
}

// Restore loads a persisted token and marks the session authenticated
// without asking the backend. A missing token is not an error.
func (s *Store) Restore() error {
	token, err := s.tokens.Load()
	if errors.Is(err, config.ErrNoToken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	s.set(token, ReasonRestored)
	s.logger.Debug().Msg("Session restored from token store")
	return nil
}

// Login authenticates with the backend. On success the token is persisted and
// the session becomes authenticated; on failure nothing changes and the
// classified gateway error is returned.
func (s *Store) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	resp, err := s.auth.Login(ctx, creds)
	if err != nil {
		return models.Session{}, err
	}

	if err := s.tokens.Save(resp.Token); err != nil {
		// The session still works for this run
		s.logger.Warn().Err(err).Msg("Failed to persist session token")
	}

	s.set(resp.Token, ReasonLogin)
	s.logger.Info().Str("username", creds.Username).Msg("Signed in")
	return models.Session{Token: resp.Token}, nil
}

// Logout forgets the token, locally and on disk, and returns to the login route.
func (s *Store) Logout() error {
	return s.end(ReasonLogout)
}

// Expire is Logout triggered by the backend rejecting the token (401).
func (s *Store) Expire() {
	if !s.Authenticated() {
		return
	}
	if err := s.end(ReasonExpired); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear expired token")
	}
}

func (s *Store) end(reason string) error {
	clearErr := s.tokens.Clear()

	s.set("", reason)
	s.logger.Info().Str("reason", reason).Msg("Signed out")

	if s.nav != nil {
		s.nav.Navigate(navigation.RouteLogin)
	}
	if clearErr != nil {
		return fmt.Errorf("failed to clear token: %w", clearErr)
	}
	return nil
}

func (s *Store) set(token, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.session = models.Session{Token: token}
	authenticated := s.session.Authenticated()
	bus := s.bus
	s.mu.Unlock()

	if bus != nil {
		bus.Publish(NewSessionChangedEvent(authenticated, reason))
	}
}

// Token returns the bearer token, if authenticated.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token, s.session.Authenticated()
}

// Authenticated reports whether a token is held.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Authenticated()
}

// Session returns a copy of the current session.
func (s *Store) Session() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Guard is a navigation.Guard: protected routes redirect to the login page
// when signed out, and the login page redirects to the list when signed in.
func (s *Store) Guard(path string) string {
	authenticated := s.Authenticated()
	switch {
	case path == navigation.RouteStudents && !authenticated:
		return navigation.RouteLogin
	case path == navigation.RouteLogin && authenticated:
		return navigation.RouteStudents
	case path == navigation.RouteRoot || path == "":
		if authenticated {
			return navigation.RouteStudents
		}
		return navigation.RouteLogin
	}
	return ""
}

// Close stops publishing. The persisted token is left in place.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.bus = nil
}
