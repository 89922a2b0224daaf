// Package core wires the roster client together: configuration, event bus,
// API client, navigation, session, login throttle, student list, notices
// and CSV transfers.
package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/navigation"
	"github.com/schoolroster/roster-client/internal/notify"
	"github.com/schoolroster/roster-client/internal/progress"
	"github.com/schoolroster/roster-client/internal/session"
	"github.com/schoolroster/roster-client/internal/state"
	"github.com/schoolroster/roster-client/internal/throttle"
	"github.com/schoolroster/roster-client/internal/transfer"
)

// Options customizes NewEngine. The zero value is usable.
type Options struct {
	Logger *logging.Logger
	// Clock drives the throttle countdown and notice timers. Nil means the wall clock.
	Clock clock.Clock
	// Tokens persists the session token. Nil means the configured token file.
	Tokens session.TokenStore
	// ExportDir receives exported CSV files. Empty means the working directory.
	ExportDir string
}

// Engine owns every long-lived component. Create with NewEngine, call
// Start once, and Stop when done.
type Engine struct {
	config   *config.Config
	logger   *logging.Logger
	eventBus *events.EventBus

	apiClient   *api.Client
	history     *navigation.History
	session     *session.Store
	throttle    *throttle.Machine
	list        *state.StudentListState
	board       *notify.Board
	notifier    *notify.Notifier
	journal     *transfer.Journal
	coordinator *transfer.Coordinator

	ctx     context.Context
	cancel  context.CancelFunc
	stopNav func()
	stopThr func()
	blocked atomic.Bool
	once    sync.Once
}

// NewEngine builds the component graph from cfg. Nothing touches the
// network or the history until Start.
func NewEngine(cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	apiClient, err := api.NewClient(cfg, logger.Named("api"))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	eventBus := events.NewEventBus(1000)
	history := navigation.NewHistory(eventBus, navigation.RouteRoot)

	tokens := opts.Tokens
	if tokens == nil {
		tokens = session.NewFileTokenStore(cfg.ResolveTokenFile(), logger.Output())
	}
	store := session.NewStore(tokens, apiClient, history, eventBus, logger.Named("session"))
	history.SetGuard(store.Guard)
	apiClient.SetTokenSource(store)
	apiClient.SetUnauthorizedHandler(store.Expire)

	notifier := notify.NewNotifier(notify.ConfigFrom(cfg.Notifications), logger.Named("notify"))
	board := notify.NewBoard(eventBus, clk, notifier, logger.Named("notices"))

	list := state.NewStudentListState(apiClient, history, eventBus, cfg.PageSize, logger.Named("list"))

	journal := transfer.NewJournal(eventBus)
	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}
	coordinator := transfer.NewCoordinator(apiClient, list, board, transfer.DirSaver{Dir: exportDir}, journal, logger.Named("transfer"))
	coordinator.SetProgressFactory(func(t transfer.TaskType, name string) progress.Reporter {
		return progress.NewEventProgress(eventBus, string(t), name)
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		config:      cfg,
		logger:      logger,
		eventBus:    eventBus,
		apiClient:   apiClient,
		history:     history,
		session:     store,
		throttle:    throttle.New(store, history, eventBus, clk, logger.Named("throttle")),
		list:        list,
		board:       board,
		notifier:    notifier,
		journal:     journal,
		coordinator: coordinator,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start restores a saved session and, unless path is empty, opens path
// subject to the session guard. Landing on the students route mounts the list.
func (e *Engine) Start(path string) error {
	if err := e.session.Restore(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to restore session")
	}

	e.stopNav = e.eventBus.Listen(navigation.EventNavigated, e.route)
	e.stopThr = e.eventBus.Listen(throttle.EventThrottleChanged, e.onThrottle)

	if path == "" {
		return nil
	}
	return e.history.Push(path)
}

// route mounts the list on the students route and unmounts it elsewhere.
func (e *Engine) route(ev events.Event) {
	nav, ok := ev.(*navigation.NavigatedEvent)
	if !ok {
		return
	}
	onStudents := nav.Location.Path == navigation.RouteStudents
	switch {
	case onStudents && !e.list.Mounted():
		if err := e.list.Mount(e.ctx); err != nil {
			e.logger.Debug().Err(err).Msg("Initial list load failed")
		}
	case !onStudents && e.list.Mounted():
		e.list.Unmount()
	}
}

func (e *Engine) onThrottle(ev events.Event) {
	changed, ok := ev.(*throttle.ThrottleChangedEvent)
	if !ok {
		return
	}
	if changed.State != throttle.Blocked {
		e.blocked.Store(false)
		return
	}
	if !e.blocked.Swap(true) {
		e.notifier.LoginBlocked(changed.RemainingSeconds)
	}
}

// Stop releases timers and listeners. Safe to call more than once.
func (e *Engine) Stop() {
	e.once.Do(func() {
		if e.stopNav != nil {
			e.stopNav()
		}
		if e.stopThr != nil {
			e.stopThr()
		}
		e.list.Unmount()
		e.journal.CancelAll()
		e.throttle.Close()
		e.board.Close()
		e.session.Close()
		e.cancel()
		if n := e.eventBus.Dropped(); n > 0 {
			e.logger.Debug().Int64("dropped", n).Msg("Events dropped by slow subscribers")
		}
		e.eventBus.Close()
	})
}

// GetConfig returns the configuration the engine was built with.
func (e *Engine) GetConfig() *config.Config { return e.config }

// Events returns the event bus.
func (e *Engine) Events() *events.EventBus { return e.eventBus }

// API returns the resource gateway.
func (e *Engine) API() *api.Client { return e.apiClient }

// History returns the navigation history.
func (e *Engine) History() *navigation.History { return e.history }

// Session returns the session store.
func (e *Engine) Session() *session.Store { return e.session }

// Throttle returns the login throttle.
func (e *Engine) Throttle() *throttle.Machine { return e.throttle }

// List returns the student list controller.
func (e *Engine) List() *state.StudentListState { return e.list }

// Notices returns the notice board.
func (e *Engine) Notices() *notify.Board { return e.board }

// Desktop returns the desktop notifier.
func (e *Engine) Desktop() *notify.Notifier { return e.notifier }

// Transfers returns the CSV transfer coordinator.
func (e *Engine) Transfers() *transfer.Coordinator { return e.coordinator }
