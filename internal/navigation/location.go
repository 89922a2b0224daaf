// Package navigation models the application's address bar: a history of
// locations (path + query) with push, replace and back/forward, plus the
// encoding of list queries into deep-link parameters.
package navigation

import (
	"fmt"
	"net/url"
	"strings"
)

// Routes
const (
	RouteRoot     = "/"
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteStudents = "/students"
)

// Location is a path plus query parameters, like a browser URL without the origin.
type Location struct {
	Path  string
	Query url.Values
}

// ParseLocation parses "/students?page=2&size=5". A missing leading slash is added.
// A full URL is accepted and reduced to its path and query.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", raw, err)
	}

	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	return Location{Path: path, Query: u.Query()}, nil
}

// String renders the location with an encoded (sorted) query.
func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// clone returns a deep copy so callers cannot mutate history entries.
func (l Location) clone() Location {
	out := Location{Path: l.Path, Query: url.Values{}}
	for k, v := range l.Query {
		out.Query[k] = append([]string(nil), v...)
	}
	return out
}
