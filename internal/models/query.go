package models

import (
	"net/url"
	"strconv"

	"github.com/schoolroster/roster-client/internal/constants"
)

// ListQuery describes one view of the student collection.
// An empty Search or Level means the filter is absent.
type ListQuery struct {
	Page   int    `validate:"gte=0"`
	Size   int    `validate:"gt=0"`
	Search string `validate:"max=50"`
	Level  Level  `validate:"omitempty,level"`
}

// DefaultListQuery returns the query used when nothing else is known.
func DefaultListQuery() ListQuery {
	return ListQuery{
		Page: constants.DefaultPage,
		Size: constants.DefaultPageSize,
	}
}

// WithPage returns a copy of q pointing at page n.
func (q ListQuery) WithPage(n int) ListQuery {
	q.Page = n
	return q
}

// WithFilters returns a copy of q with new filters, back on the first page.
func (q ListQuery) WithFilters(search string, level Level) ListQuery {
	q.Search = search
	q.Level = level
	q.Page = 0
	return q
}

// Values encodes q as query parameters. Search is omitted when empty and
// Level when unset, matching what the backend treats as "no filter".
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Level.IsSet() {
		v.Set("level", q.Level.String())
	}
	return v
}
