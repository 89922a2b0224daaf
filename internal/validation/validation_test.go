package validation

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schoolroster/roster-client/internal/models"
)

func TestCredentials(t *testing.T) {
	tests := []struct {
		name      string
		creds     models.Credentials
		wantField string
	}{
		{"valid", models.Credentials{Username: "admin", Password: "secret1"}, ""},
		{"empty username", models.Credentials{Username: "", Password: "secret1"}, "username"},
		{"blank username", models.Credentials{Username: "   ", Password: "secret1"}, "username"},
		{"short username", models.Credentials{Username: "ab", Password: "secret1"}, "username"},
		{"short password", models.Credentials{Username: "admin", Password: "12345"}, "password"},
		{"empty password", models.Credentials{Username: "admin"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Credentials(tt.creds)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Credentials() = %v, want nil", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Credentials() = %v, want *Error", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestRegisterRequestMaxLength(t *testing.T) {
	err := RegisterRequest(models.RegisterRequest{Username: strings.Repeat("a", 21), Password: "secret1"})
	if err == nil || !strings.Contains(err.Error(), "at most 20") {
		t.Errorf("RegisterRequest() = %v, want max length error", err)
	}
	if err := RegisterRequest(models.RegisterRequest{Username: "newadmin", Password: "secret1"}); err != nil {
		t.Errorf("RegisterRequest() = %v, want nil", err)
	}
}

func TestStudentRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.StudentRequest
		wantErr string
	}{
		{"valid", models.StudentRequest{Username: "ann", Level: models.LevelL2}, ""},
		{"missing level", models.StudentRequest{Username: "ann"}, "level is required"},
		{"unknown level", models.StudentRequest{Username: "ann", Level: "L9"}, "level must be one of"},
		{"blank username", models.StudentRequest{Username: " ", Level: models.LevelL1}, "username is required"},
		{"long username", models.StudentRequest{Username: strings.Repeat("x", 51), Level: models.LevelL1}, "at most 50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := StudentRequest(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("StudentRequest() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("StudentRequest() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestListQuery(t *testing.T) {
	if err := ListQuery(models.DefaultListQuery()); err != nil {
		t.Errorf("ListQuery(default) = %v", err)
	}
	if err := ListQuery(models.ListQuery{Page: -1, Size: 5}); err == nil {
		t.Error("expected error for negative page")
	}
	if err := ListQuery(models.ListQuery{Page: 0, Size: 0}); err == nil {
		t.Error("expected error for zero size")
	}
	if err := ListQuery(models.ListQuery{Page: 0, Size: 5, Level: "X1"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPageIndex(t *testing.T) {
	if err := PageIndex(0); err != nil {
		t.Errorf("PageIndex(0) = %v", err)
	}
	if err := PageIndex(-1); !IsValidationError(err) {
		t.Errorf("PageIndex(-1) = %v, want validation error", err)
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
	}{
		{"students.csv", true},
		{"roster v2.csv", true},
		{".hidden", true},
		{"data..v2.csv", true},
		{"", false},
		{"..", false},
		{"../students.csv", false},
		{"dir\\students.csv", false},
		{"bad\x00name", false},
	}

	for _, tt := range tests {
		err := Filename(tt.filename)
		if (err == nil) != tt.valid {
			t.Errorf("Filename(%q) = %v, want valid=%t", tt.filename, err, tt.valid)
		}
	}
}

func TestPathInDirectory(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		path  string
		valid bool
	}{
		{"students.csv", true},
		{filepath.Join("exports", "students.csv"), true},
		{filepath.Join(base, "students.csv"), true},
		{filepath.Join("..", "students.csv"), false},
		{"..", false},
	}

	for _, tt := range tests {
		err := PathInDirectory(tt.path, base)
		if (err == nil) != tt.valid {
			t.Errorf("PathInDirectory(%q) = %v, want valid=%t", tt.path, err, tt.valid)
		}
	}
}
