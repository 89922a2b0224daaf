package navigation

import (
	"net/url"
	"testing"

	"github.com/schoolroster/roster-client/internal/events"
	"github.com/schoolroster/roster-client/internal/models"
)

func TestListQueryRoundTrip(t *testing.T) {
	q := models.ListQuery{Page: 2, Size: 5, Search: "ann", Level: models.LevelL2}

	values := EncodeListQuery(q, nil)
	if got := values.Encode(); got != "level=L2&page=2&search=ann&size=5" {
		t.Errorf("EncodeListQuery() = %q", got)
	}

	if back := DecodeListQuery(values, 5); back != q {
		t.Errorf("DecodeListQuery() = %+v, want %+v", back, q)
	}
}

func TestEncodeListQueryMergesUnrelatedParams(t *testing.T) {
	existing := url.Values{"tab": {"grades"}, "search": {"old"}, "level": {"M1"}}
	q := models.ListQuery{Page: 0, Size: 5}

	values := EncodeListQuery(q, existing)
	if values.Get("tab") != "grades" {
		t.Error("unrelated parameter was dropped")
	}
	if _, ok := values["search"]; ok {
		t.Error("empty search must be removed")
	}
	if _, ok := values["level"]; ok {
		t.Error("absent level must be removed")
	}
	if existing.Get("search") != "old" {
		t.Error("input values must not be mutated")
	}
}

func TestDecodeListQueryTolerant(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  models.ListQuery
	}{
		{"empty", "", models.ListQuery{Page: 0, Size: 5}},
		{"garbage numbers", "page=abc&size=-3", models.ListQuery{Page: 0, Size: 5}},
		{"negative page", "page=-1&size=10", models.ListQuery{Page: 0, Size: 10}},
		{"lowercase level", "level=m2", models.ListQuery{Page: 0, Size: 5, Level: models.LevelM2}},
		{"unknown level", "level=PhD&search=x", models.ListQuery{Page: 0, Size: 5, Search: "x"}},
		{"oversized page size", "size=5000", models.ListQuery{Page: 0, Size: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			if got := DecodeListQuery(values, 5); got != tt.want {
				t.Errorf("DecodeListQuery(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestListLink(t *testing.T) {
	got := ListLink(models.ListQuery{Page: 1, Size: 5})
	if got != "/students?page=1&size=5" {
		t.Errorf("ListLink() = %q", got)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw      string
		wantPath string
		wantPage string
	}{
		{"/students?page=3", "/students", "3"},
		{"students/", "/students", ""},
		{"http://localhost:4200/students?page=1", "/students", "1"},
	}
	for _, tt := range tests {
		loc, err := ParseLocation(tt.raw)
		if err != nil {
			t.Fatalf("ParseLocation(%q) error = %v", tt.raw, err)
		}
		if loc.Path != tt.wantPath || loc.Query.Get("page") != tt.wantPage {
			t.Errorf("ParseLocation(%q) = %+v", tt.raw, loc)
		}
	}

	if _, err := ParseLocation("  "); err == nil {
		t.Error("expected error for empty location")
	}
}

func TestHistoryPushBackForward(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()

	var origins []Origin
	bus.Listen(EventNavigated, func(e events.Event) {
		origins = append(origins, e.(*NavigatedEvent).Origin)
	})

	h := NewHistory(bus, RouteLogin)
	if err := h.Push("/students?page=0"); err != nil {
		t.Fatal(err)
	}
	if err := h.Push("/students?page=1"); err != nil {
		t.Fatal(err)
	}

	if !h.Back() {
		t.Fatal("Back() = false")
	}
	if got := h.Current().Query.Get("page"); got != "0" {
		t.Errorf("after Back page = %q, want 0", got)
	}
	if !h.Forward() {
		t.Fatal("Forward() = false")
	}
	if h.Forward() {
		t.Error("Forward() at end should be false")
	}

	// Pushing after going back drops the forward entries
	h.Back()
	h.Push("/register")
	if h.CanGoForward() {
		t.Error("forward entries should be discarded")
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}

	want := []Origin{OriginPush, OriginPush, OriginPop, OriginPop, OriginPop, OriginPush}
	if len(origins) != len(want) {
		t.Fatalf("origins = %v, want %v", origins, want)
	}
	for i := range want {
		if origins[i] != want[i] {
			t.Errorf("origin[%d] = %s, want %s", i, origins[i], want[i])
		}
	}
}

func TestHistoryReplaceKeepsLength(t *testing.T) {
	h := NewHistory(nil, "/students")
	if err := h.ReplaceFrom("/students?page=4", "list"); err != nil {
		t.Fatal(err)
	}
	if h.Len() != 1 || h.CanGoBack() {
		t.Error("Replace must not add entries")
	}
	if h.Current().String() != "/students?page=4" {
		t.Errorf("Current() = %s", h.Current())
	}
}

func TestHistoryGuardRedirects(t *testing.T) {
	authenticated := false
	h := NewHistory(nil, RouteLogin)
	h.SetGuard(func(path string) string {
		if path == RouteStudents && !authenticated {
			return RouteLogin
		}
		return ""
	})

	h.Navigate(RouteStudents)
	if got := h.Current().Path; got != RouteLogin {
		t.Errorf("guarded navigation landed on %s", got)
	}

	authenticated = true
	h.Navigate(RouteStudents)
	if got := h.Current().Path; got != RouteStudents {
		t.Errorf("allowed navigation landed on %s", got)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	h := NewHistory(nil, "/students?page=1")
	loc := h.Current()
	loc.Query.Set("page", "9")
	if h.Current().Query.Get("page") != "1" {
		t.Error("Current() must return a copy")
	}
}
