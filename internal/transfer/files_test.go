package transfer

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/schoolroster/roster-client/internal/validation"
)

func TestDirSaverReplacesFile(t *testing.T) {
	dir := t.TempDir()
	saver := DirSaver{Dir: dir}

	path, err := saver.Save("students.csv", []byte("old"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := saver.Save("students.csv", []byte("new")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, want new", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (no temp files left)", len(entries))
	}
}

func TestDirSaverCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "today")
	if _, err := (DirSaver{Dir: dir}).Save("students.csv", nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "students.csv")); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestDirSaverRejectsUnsafeNames(t *testing.T) {
	saver := DirSaver{Dir: t.TempDir()}
	for _, name := range []string{"", "..", "../escape.csv", "a/b.csv"} {
		if _, err := saver.Save(name, []byte("x")); !validation.IsValidationError(err) {
			t.Errorf("Save(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestSelectPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.csv")
	if err := os.WriteFile(path, []byte("username,level\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := SelectPath(path)
	if err != nil {
		t.Fatalf("SelectPath() error = %v", err)
	}
	if f.Name != "roster.csv" || f.Size != 15 {
		t.Errorf("selected = %+v", f)
	}
	rc, err := f.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "username,level\n" {
		t.Errorf("content = %q", data)
	}

	if _, err := SelectPath(dir); !validation.IsValidationError(err) {
		t.Errorf("SelectPath(dir) error = %v, want validation error", err)
	}
	if _, err := SelectPath(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("SelectPath(missing) should fail")
	}
}
