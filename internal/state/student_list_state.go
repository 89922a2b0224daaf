package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/schoolroster/roster-client/internal/constants"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/navigation"
	"github.com/schoolroster/roster-client/internal/validation"
)

// urlWriter tags history entries written by the list itself.
const urlWriter = "student-list"

// ErrNotMounted is returned by operations that need a mounted list.
var ErrNotMounted = errors.New("student list is not mounted")

// StudentGateway is the subset of the API client the list needs.
type StudentGateway interface {
	ListStudents(ctx context.Context, q models.ListQuery) (*models.Page[models.Student], error)
	CreateStudent(ctx context.Context, req models.StudentRequest) (*models.Student, error)
	UpdateStudent(ctx context.Context, id int64, req models.StudentRequest) (*models.Student, error)
	DeleteStudent(ctx context.Context, id int64) error
}

// History is the address bar the list mirrors its query into. *navigation.History implements it.
type History interface {
	Current() navigation.Location
	ReplaceFrom(raw, writer string) error
}

// StudentListState is the list controller: it owns the current ListQuery and
// the last page fetched for it, and keeps both in step with the URL.
// Thread-safe; the lock is never held across a gateway call or a publish.
type StudentListState struct {
	gateway  StudentGateway
	history  History
	eventBus *events.EventBus
	logger   *logging.Logger

	defaultSize int

	mu        sync.RWMutex
	query     models.ListQuery
	page      *models.Page[models.Student]
	lastError error
	inflight  int
	mounted   bool
	mountCtx  context.Context
	unmount   context.CancelFunc
	stopNav   func()

	// issued is the sequence number of the latest reload; applied the newest one whose result was kept.
	issued  uint64
	applied uint64

	selfWrite atomic.Bool
}

// NewStudentListState creates an unmounted list. history and eventBus may be nil;
// without a history the query is not mirrored anywhere.
func NewStudentListState(gateway StudentGateway, history History, eventBus *events.EventBus, defaultSize int, logger *logging.Logger) *StudentListState {
	if defaultSize <= 0 {
		defaultSize = constants.DefaultPageSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StudentListState{
		gateway:     gateway,
		history:     history,
		eventBus:    eventBus,
		logger:      logger,
		defaultSize: defaultSize,
		query:       models.ListQuery{Page: constants.DefaultPage, Size: defaultSize},
	}
}

// Mount initializes the query from the current URL (falling back to defaults),
// writes the normalized query back, starts following external URL changes and
// loads the first page.
func (s *StudentListState) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return s.Reload(ctx)
	}
	q := models.ListQuery{Page: constants.DefaultPage, Size: s.defaultSize}
	if s.history != nil {
		if loc := s.history.Current(); loc.Path == navigation.RouteStudents {
			q = navigation.DecodeListQuery(loc.Query, s.defaultSize)
		}
	}
	s.query = q
	s.mounted = true
	s.mountCtx, s.unmount = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	if s.eventBus != nil {
		stop := s.eventBus.Listen(navigation.EventNavigated, s.onNavigated)
		s.mu.Lock()
		s.stopNav = stop
		s.mu.Unlock()
	}

	s.writeURL(q)
	s.publish(NewQueryChangedEvent(q))
	return s.Reload(ctx)
}

// Unmount stops following the URL. In-flight reloads are cancelled and any
// late response is dropped.
func (s *StudentListState) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	stop := s.stopNav
	cancel := s.unmount
	s.stopNav = nil
	s.unmount = nil
	s.mountCtx = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
}

// Mounted reports whether the list is mounted.
func (s *StudentListState) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mounted
}

// onNavigated reads URL changes made by anyone else back into the query.
func (s *StudentListState) onNavigated(e events.Event) {
	nav, ok := e.(*navigation.NavigatedEvent)
	if !ok || nav.Writer == urlWriter || s.selfWrite.Load() {
		return
	}
	if nav.Location.Path != navigation.RouteStudents {
		return
	}

	q := navigation.DecodeListQuery(nav.Location.Query, s.defaultSize)

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.query = q
	ctx := s.mountCtx
	s.mu.Unlock()

	s.logger.Debug().Str("url", nav.Location.String()).Str("origin", nav.Origin.String()).Msg("List query changed by navigation")
	s.publish(NewQueryChangedEvent(q))
	if err := s.Reload(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Reload after navigation failed")
	}
}

// Query returns the current query.
func (s *StudentListState) Query() models.ListQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Page returns a copy of the displayed page, or nil before the first successful load.
func (s *StudentListState) Page() *models.Page[models.Student] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return nil
	}
	p := *s.page
	p.Content = append([]models.Student(nil), s.page.Content...)
	return &p
}

// Items returns a copy of the displayed students.
func (s *StudentListState) Items() []models.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return []models.Student{}
	}
	return append([]models.Student(nil), s.page.Content...)
}

// Count returns the number of displayed students.
func (s *StudentListState) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return 0
	}
	return len(s.page.Content)
}

// FindByID finds a displayed student by ID.
func (s *StudentListState) FindByID(id int64) (models.Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return models.Student{}, false
	}
	for _, st := range s.page.Content {
		if st.ID == id {
			return st, true
		}
	}
	return models.Student{}, false
}

// PageNumbers returns every page index of the displayed page, for the pager.
func (s *StudentListState) PageNumbers() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.page == nil {
		return []int{}
	}
	return s.page.PageNumbers()
}

// Err returns the error from the most recent reload, or nil.
func (s *StudentListState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// IsLoading reports whether a reload is in flight.
func (s *StudentListState) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// SetPage moves to page n (zero-based) and reloads.
func (s *StudentListState) SetPage(ctx context.Context, n int) error {
	if err := validation.PageIndex(n); err != nil {
		return err
	}
	return s.update(ctx, func(q models.ListQuery) models.ListQuery {
		return q.WithPage(n)
	})
}

// SetPageSize changes the page size, returns to the first page and reloads.
func (s *StudentListState) SetPageSize(ctx context.Context, size int) error {
	if size <= 0 {
		return &validation.Error{Field: "size", Message: "must be greater than 0"}
	}
	if size > constants.MaxPageSize {
		size = constants.MaxPageSize
	}
	return s.update(ctx, func(q models.ListQuery) models.ListQuery {
		q.Size = size
		q.Page = 0
		return q
	})
}

// SetFilters replaces search and level, returns to the first page and reloads.
func (s *StudentListState) SetFilters(ctx context.Context, search string, level models.Level) error {
	search = strings.TrimSpace(search)
	probe := models.ListQuery{Size: 1, Search: search, Level: level}
	if err := validation.ListQuery(probe); err != nil {
		return err
	}
	return s.update(ctx, func(q models.ListQuery) models.ListQuery {
		return q.WithFilters(search, level)
	})
}

// ClearSearch drops the search filter.
func (s *StudentListState) ClearSearch(ctx context.Context) error {
	return s.update(ctx, func(q models.ListQuery) models.ListQuery {
		return q.WithFilters("", q.Level)
	})
}

// ClearLevel drops the level filter.
func (s *StudentListState) ClearLevel(ctx context.Context) error {
	return s.update(ctx, func(q models.ListQuery) models.ListQuery {
		return q.WithFilters(q.Search, "")
	})
}

func (s *StudentListState) update(ctx context.Context, fn func(models.ListQuery) models.ListQuery) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return ErrNotMounted
	}
	s.query = fn(s.query)
	q := s.query
	s.mu.Unlock()

	s.writeURL(q)
	s.publish(NewQueryChangedEvent(q))
	return s.Reload(ctx)
}

// Reload fetches the page for the current query. A newer reload always wins:
// responses to older ones are dropped. On failure the displayed page is kept.
// The URL always mirrors the current query, even when an older response lands
// first.
func (s *StudentListState) Reload(ctx context.Context) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return ErrNotMounted
	}
	s.issued++
	seq := s.issued
	q := s.query
	s.inflight++
	s.mu.Unlock()

	s.publish(NewStudentListLoadingEvent(q, true))

	page, err := s.gateway.ListStudents(ctx, q)

	s.mu.Lock()
	s.inflight--
	loading := s.inflight > 0
	if !s.mounted {
		// A 401 unmounts the list mid-request; keep the cause for callers
		if err != nil && !errors.Is(err, context.Canceled) {
			s.lastError = err
		}
		s.mu.Unlock()
		s.logger.Debug().Uint64("seq", seq).Msg("Dropping list response after unmount")
		return err
	}
	if seq <= s.applied {
		s.mu.Unlock()
		s.logger.Debug().Uint64("seq", seq).Msg("Dropping stale list response")
		return nil
	}
	s.applied = seq

	if err != nil {
		s.lastError = err
		s.mu.Unlock()
		s.logger.Warn().Err(err).Int("page", q.Page).Msg("Failed to load students")
		s.publish(NewStudentListErrorEvent(q, err))
		s.publish(NewStudentListLoadingEvent(q, loading))
		return err
	}

	if verr := page.Validate(); verr != nil {
		s.logger.Warn().Err(verr).Msg("Backend returned an inconsistent page")
	}
	s.page = page
	s.lastError = nil
	applied := *page
	applied.Content = append([]models.Student(nil), page.Content...)
	// A newer query may already be pending; the URL follows it, not q
	current := s.query
	s.mu.Unlock()

	s.writeURL(current)
	s.publish(NewStudentListChangedEvent(q, applied))
	s.publish(NewStudentListLoadingEvent(q, loading))
	return nil
}

// CreateOrUpdate validates req, then creates a student (id nil) or updates one,
// and returns to the first page. The saved student is returned even when the
// reload afterwards fails.
func (s *StudentListState) CreateOrUpdate(ctx context.Context, req models.StudentRequest, id *int64) (*models.Student, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.StudentRequest(req); err != nil {
		return nil, err
	}

	var saved *models.Student
	var err error
	if id == nil {
		saved, err = s.gateway.CreateStudent(ctx, req)
	} else {
		saved, err = s.gateway.UpdateStudent(ctx, *id, req)
	}
	if err != nil {
		return nil, err
	}

	if !s.Mounted() {
		return saved, nil
	}
	return saved, s.SetPage(ctx, 0)
}

// Delete removes a student. When it was the only one on a page other than the
// first, the list steps back one page; otherwise it stays on the same page.
func (s *StudentListState) Delete(ctx context.Context, id int64) error {
	s.mu.RLock()
	stepBack := s.query.Page > 0 && s.page != nil && s.page.Number == s.query.Page &&
		len(s.page.Content) == 1 && s.page.Content[0].ID == id
	s.mu.RUnlock()

	if err := s.gateway.DeleteStudent(ctx, id); err != nil {
		return err
	}

	if !s.Mounted() {
		return nil
	}
	if stepBack {
		return s.update(ctx, func(q models.ListQuery) models.ListQuery {
			if q.Page > 0 {
				q.Page--
			}
			return q
		})
	}
	return s.Reload(ctx)
}

// writeURL mirrors q into the address bar with replace semantics, keeping
// parameters the list does not own.
func (s *StudentListState) writeURL(q models.ListQuery) {
	if s.history == nil {
		return
	}
	current := s.history.Current()
	if current.Path != navigation.RouteStudents {
		return
	}
	target := navigation.Location{
		Path:  navigation.RouteStudents,
		Query: navigation.EncodeListQuery(q, current.Query),
	}
	if target.String() == current.String() {
		return
	}

	s.selfWrite.Store(true)
	defer s.selfWrite.Store(false)
	if err := s.history.ReplaceFrom(target.String(), urlWriter); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to update list URL")
	}
}

func (s *StudentListState) publish(e events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(e)
	}
}
