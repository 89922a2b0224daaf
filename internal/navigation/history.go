package navigation

import (
	"sync"

	"github.com/schoolroster/roster-client/internal/events"
)

// Guard decides whether a path may be entered. It returns the path to
// redirect to, or "" to allow.
type Guard func(path string) string

// History is an in-memory navigation stack. It is safe for concurrent use.
// Every change is published as a NavigatedEvent after the lock is released.
type History struct {
	mu      sync.Mutex
	entries []Location
	index   int
	guard   Guard
	bus     *events.EventBus
}

// NewHistory creates a history positioned at initial (RouteLogin if empty or invalid).
func NewHistory(bus *events.EventBus, initial string) *History {
	loc, err := ParseLocation(initial)
	if err != nil {
		loc = Location{Path: RouteLogin}
	}
	return &History{
		entries: []Location{loc},
		bus:     bus,
	}
}

// SetGuard installs a guard consulted by Push and Navigate.
func (h *History) SetGuard(g Guard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.guard = g
}

// Current returns a copy of the current location.
func (h *History) Current() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index].clone()
}

// Push adds a new entry after the current one, dropping any forward entries.
func (h *History) Push(raw string) error {
	return h.PushFrom(raw, "")
}

// PushFrom is Push with a writer tag carried in the event.
func (h *History) PushFrom(raw, writer string) error {
	loc, err := ParseLocation(raw)
	if err != nil {
		return err
	}
	loc = h.applyGuard(loc)

	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], loc)
	h.index = len(h.entries) - 1
	current := loc.clone()
	h.mu.Unlock()

	h.publish(current, OriginPush, writer)
	return nil
}

// Navigate pushes path, ignoring parse errors. It satisfies the Navigator
// interfaces of the session and throttle packages.
func (h *History) Navigate(path string) {
	_ = h.Push(path)
}

// Replace rewrites the current entry.
func (h *History) Replace(raw string) error {
	return h.ReplaceFrom(raw, "")
}

// ReplaceFrom is Replace with a writer tag carried in the event.
func (h *History) ReplaceFrom(raw, writer string) error {
	loc, err := ParseLocation(raw)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.entries[h.index] = loc
	current := loc.clone()
	h.mu.Unlock()

	h.publish(current, OriginReplace, writer)
	return nil
}

// Back moves one entry back. Returns false at the start of history.
func (h *History) Back() bool {
	return h.step(-1)
}

// Forward moves one entry forward. Returns false at the end of history.
func (h *History) Forward() bool {
	return h.step(1)
}

// CanGoBack reports whether Back would move.
func (h *History) CanGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

// CanGoForward reports whether Forward would move.
func (h *History) CanGoForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index < len(h.entries)-1
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) step(delta int) bool {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = next
	current := h.entries[next].clone()
	h.mu.Unlock()

	h.publish(current, OriginPop, "")
	return true
}

func (h *History) applyGuard(loc Location) Location {
	h.mu.Lock()
	guard := h.guard
	h.mu.Unlock()

	if guard == nil {
		return loc
	}
	if redirect := guard(loc.Path); redirect != "" && redirect != loc.Path {
		if target, err := ParseLocation(redirect); err == nil {
			return target
		}
	}
	return loc
}

func (h *History) publish(loc Location, origin Origin, writer string) {
	if h.bus != nil {
		h.bus.Publish(NewNavigatedEvent(loc, origin, writer))
	}
}
