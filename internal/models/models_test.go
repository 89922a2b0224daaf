package models

import (
	"encoding/json"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"L1", LevelL1, false},
		{"l2", LevelL2, false},
		{" m1 ", LevelM1, false},
		{"M2", LevelM2, false},
		{"", "", false},
		{"L4", "", true},
		{"master", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLevelNames(t *testing.T) {
	if got := LevelNames(); got != "L1, L2, L3, M1, M2" {
		t.Errorf("LevelNames() = %q", got)
	}
}

func TestNewPageIsConsistent(t *testing.T) {
	tests := []struct {
		name          string
		content       []Student
		number, size  int
		totalElements int
		wantPages     int
		wantLast      bool
	}{
		{"empty collection", nil, 0, 5, 0, 0, true},
		{"single page", []Student{{ID: 1}}, 0, 5, 1, 1, true},
		{"first of three", make([]Student, 5), 0, 5, 12, 3, false},
		{"last of three", make([]Student, 2), 2, 5, 12, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(tt.content, tt.number, tt.size, tt.totalElements)
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if p.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.wantPages)
			}
			if p.Last != tt.wantLast {
				t.Errorf("Last = %t, want %t", p.Last, tt.wantLast)
			}
			if p.Content == nil {
				t.Error("Content should never be nil")
			}
		})
	}
}

func TestPageValidateRejectsInconsistentFlags(t *testing.T) {
	p := NewPage([]Student{{ID: 1}}, 1, 5, 10)
	p.First = true
	if err := p.Validate(); err == nil {
		t.Error("expected error for first=true on page 1")
	}

	p = NewPage([]Student{}, 0, 5, 0)
	p.Empty = false
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty=false with no content")
	}

	p = NewPage([]Student{{ID: 1}}, 0, 0, 1)
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestPageNumbers(t *testing.T) {
	p := NewPage(make([]Student, 5), 0, 5, 11)
	got := p.PageNumbers()
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("PageNumbers() = %v, want [0 1 2]", got)
	}
}

func TestPageDecodesBackendShape(t *testing.T) {
	body := `{"content":[{"id":7,"username":"ann","level":"L2"}],"totalPages":3,"totalElements":11,
		"number":1,"size":5,"first":false,"last":false,"empty":false,"pageable":{"pageNumber":1}}`

	var p Page[Student]
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if p.Content[0].Username != "ann" || p.Content[0].Level != LevelL2 {
		t.Errorf("Content[0] = %+v", p.Content[0])
	}
}

func TestListQueryHelpers(t *testing.T) {
	q := DefaultListQuery()
	if q.Page != 0 || q.Size != 5 || q.Search != "" || q.Level.IsSet() {
		t.Fatalf("DefaultListQuery() = %+v", q)
	}

	q = q.WithPage(3)
	if q.Page != 3 {
		t.Errorf("WithPage(3).Page = %d", q.Page)
	}

	q = q.WithFilters("ann", LevelL2)
	if q.Page != 0 {
		t.Errorf("WithFilters should reset page, got %d", q.Page)
	}
	if q.Search != "ann" || q.Level != LevelL2 || q.Size != 5 {
		t.Errorf("WithFilters() = %+v", q)
	}
}

func TestSessionAuthenticated(t *testing.T) {
	if (Session{}).Authenticated() {
		t.Error("empty session should not be authenticated")
	}
	if !(Session{Token: "abc"}).Authenticated() {
		t.Error("session with token should be authenticated")
	}
}

func TestListQueryValuesOmitsAbsentFilters(t *testing.T) {
	v := DefaultListQuery().Values()
	if v.Encode() != "page=0&size=5" {
		t.Errorf("Values() = %q, want page=0&size=5", v.Encode())
	}

	v = ListQuery{Page: 2, Size: 5, Search: "ann", Level: LevelL2}.Values()
	if v.Get("search") != "ann" || v.Get("level") != "L2" || v.Get("page") != "2" {
		t.Errorf("Values() = %q", v.Encode())
	}
}
