package navigation

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/schoolroster/roster-client/internal/constants"
	"github.com/schoolroster/roster-client/internal/models"
)

// listKeys are the query parameters owned by the student list.
var listKeys = []string{"page", "size", "search", "level"}

// EncodeListQuery writes q into a copy of existing. Parameters the list does
// not own are preserved; search and level are removed when absent.
func EncodeListQuery(q models.ListQuery, existing url.Values) url.Values {
	out := url.Values{}
	for k, v := range existing {
		out[k] = append([]string(nil), v...)
	}
	for _, k := range listKeys {
		out.Del(k)
	}
	for k, v := range q.Values() {
		out[k] = v
	}
	return out
}

// DecodeListQuery reads a list query from URL parameters. It never fails:
// malformed or missing values fall back to page 0, the given default size,
// no search and no level.
func DecodeListQuery(values url.Values, defaultSize int) models.ListQuery {
	if defaultSize <= 0 {
		defaultSize = constants.DefaultPageSize
	}
	q := models.ListQuery{Page: constants.DefaultPage, Size: defaultSize}

	if n, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && n >= 0 {
		q.Page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(values.Get("size"))); err == nil && n > 0 {
		if n > constants.MaxPageSize {
			n = constants.MaxPageSize
		}
		q.Size = n
	}
	q.Search = values.Get("search")
	if level, err := models.ParseLevel(values.Get("level")); err == nil {
		q.Level = level
	}
	return q
}

// ListLink renders the deep link for q, e.g. "/students?level=L2&page=2&search=ann&size=5".
func ListLink(q models.ListQuery) string {
	return Location{Path: RouteStudents, Query: q.Values()}.String()
}
