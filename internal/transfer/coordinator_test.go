package transfer

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"

	"github.com/schoolroster/roster-client/internal/api"
	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/notify"
	"github.com/schoolroster/roster-client/internal/progress"
	"github.com/schoolroster/roster-client/internal/testutil/fakebackend"
	"github.com/schoolroster/roster-client/internal/validation"
)

type staticToken string

func (s staticToken) Token() (string, bool) { return string(s), s != "" }

type countingReloader struct {
	mu    sync.Mutex
	calls int
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

type failingSaver struct{}

func (failingSaver) Save(string, []byte) (string, error) {
	return "", errors.New("disk full")
}

type harness struct {
	srv    *fakebackend.Server
	board  *notify.Board
	list   *countingReloader
	dir    string
	coord  *Coordinator
	client *api.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := fakebackend.New()
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIURL = srv.URL
	cfg.RequestsPerSecond = 1000
	client, err := api.NewClient(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	client.SetTokenSource(staticToken(srv.IssueToken("admin")))

	board := notify.NewBoard(nil, clock.NewMock(), nil, nil)
	t.Cleanup(board.Close)
	list := &countingReloader{}
	dir := t.TempDir()
	coord := NewCoordinator(client, list, board, DirSaver{Dir: dir}, nil, nil)

	return &harness{srv: srv, board: board, list: list, dir: dir, coord: coord, client: client}
}

func (h *harness) notice(t *testing.T) notify.Notice {
	t.Helper()
	n, ok := h.board.Current()
	if !ok {
		t.Fatal("no notice shown")
	}
	return n
}

func TestImportFileSuccess(t *testing.T) {
	h := newHarness(t)

	msg, err := h.coord.ImportFile(context.Background(), SelectBytes("roster.csv", []byte("username,level\nann,L1\nbob,M2\n")))
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if msg != "Students imported successfully" {
		t.Errorf("message = %q", msg)
	}
	if got := len(h.srv.Students()); got != 2 {
		t.Errorf("backend has %d students, want 2", got)
	}
	if h.list.calls != 1 {
		t.Errorf("list reloaded %d times, want 1", h.list.calls)
	}

	n := h.notice(t)
	if n.Kind != notify.KindSuccess || !n.Transient || n.Message != msg {
		t.Errorf("notice = %+v, want transient success", n)
	}

	tasks := h.coord.Journal().Tasks()
	if len(tasks) != 1 || tasks[0].State != TaskCompleted || tasks[0].Progress != 1 {
		t.Errorf("journal = %+v", tasks)
	}
}

func TestImportZeroRows(t *testing.T) {
	h := newHarness(t)

	msg, err := h.coord.ImportFile(context.Background(), SelectBytes("empty.csv", []byte("username,level\n")))
	if err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if msg == "" || len(h.srv.Students()) != 0 {
		t.Errorf("msg = %q, students = %d", msg, len(h.srv.Students()))
	}
}

func TestImportWithoutSelection(t *testing.T) {
	h := newHarness(t)

	for _, f := range []*SelectedFile{nil, SelectBytes("empty.csv", nil)} {
		_, err := h.coord.ImportFile(context.Background(), f)
		if !validation.IsValidationError(err) {
			t.Errorf("ImportFile(%v) error = %v, want validation error", f, err)
		}
	}
	if got := len(h.srv.Requests()); got != 0 {
		t.Errorf("made %d requests, want none", got)
	}
	if n := h.notice(t); n.Kind != notify.KindError || n.Message != MessageSelectFile {
		t.Errorf("notice = %+v", n)
	}
	if len(h.coord.Journal().Tasks()) != 0 {
		t.Error("rejected selections should not be journaled")
	}
}

func TestImportFailureShowsBackendReason(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedN(1)

	_, err := h.coord.ImportFile(context.Background(), SelectBytes("dup.csv", []byte("username,level\nstudent01,L1\n")))
	if err == nil {
		t.Fatal("duplicate import should fail")
	}

	n := h.notice(t)
	if n.Kind != notify.KindError || n.Transient {
		t.Errorf("notice = %+v, want persistent error", n)
	}
	if n.Message != "Failed to import CSV: Username already exists: student01" {
		t.Errorf("notice message = %q", n.Message)
	}
	if h.list.calls != 0 {
		t.Error("failed import must not reload the list")
	}
	if s := h.coord.Journal().Stats(); s.Failed != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestImportNetworkFailureGenericMessage(t *testing.T) {
	h := newHarness(t)
	h.srv.Close()

	_, err := h.coord.ImportFile(context.Background(), SelectBytes("roster.csv", []byte("username,level\nann,L1\n")))
	if !api.IsNetworkError(err) {
		t.Fatalf("error = %v, want network error", err)
	}
	if n := h.notice(t); n.Message != MessageImportFailed {
		t.Errorf("notice = %q, want generic", n.Message)
	}
}

func TestImportFromPath(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "roster.csv")
	if err := os.WriteFile(path, []byte("username,level\ncarol,L3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := SelectPath(path)
	if err != nil {
		t.Fatal(err)
	}

	var rec *recorder
	h.coord.SetProgressFactory(func(TaskType, string) progress.Reporter {
		rec = &recorder{}
		return rec
	})

	if _, err := h.coord.ImportFile(context.Background(), f); err != nil {
		t.Fatalf("ImportFile() error = %v", err)
	}
	if rec == nil || !rec.finished || rec.last != f.Size {
		t.Errorf("progress = %+v, want finished at %d bytes", rec, f.Size)
	}
}

func TestExportAllSavesFile(t *testing.T) {
	h := newHarness(t)
	h.srv.SeedN(2)

	path, err := h.coord.ExportAll(context.Background())
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	if filepath.Base(path) != "students.csv" {
		t.Errorf("saved as %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "username,level\nstudent01,L1\nstudent02,L1\n" {
		t.Errorf("content = %q", data)
	}
	if n := h.notice(t); n.Kind != notify.KindSuccess {
		t.Errorf("notice = %+v", n)
	}
}

func TestExportEmptyStillSaved(t *testing.T) {
	h := newHarness(t)

	path, err := h.coord.ExportAll(context.Background())
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
}

func TestExportFailures(t *testing.T) {
	t.Run("backend", func(t *testing.T) {
		h := newHarness(t)
		h.srv.FailNext(http.StatusInternalServerError, "boom")

		if _, err := h.coord.ExportAll(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if n := h.notice(t); n.Kind != notify.KindError || n.Message != MessageExportFailed {
			t.Errorf("notice = %+v", n)
		}
		if got := h.srv.CountRequests(http.MethodGet, "/api/students/export/csv"); got != 1 {
			t.Errorf("export requested %d times, want 1 (no retry)", got)
		}
		if _, err := os.Stat(filepath.Join(h.dir, "students.csv")); !os.IsNotExist(err) {
			t.Error("nothing should be saved on failure")
		}
	})

	t.Run("saver", func(t *testing.T) {
		h := newHarness(t)
		coord := NewCoordinator(h.client, nil, h.board, failingSaver{}, nil, nil)
		if _, err := coord.ExportAll(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if n := h.notice(t); n.Message != MessageExportSaveFail {
			t.Errorf("notice = %+v", n)
		}
	})
}

type recorder struct {
	last     int64
	finished bool
}

func (r *recorder) Start(int64, string)   {}
func (r *recorder) Update(current int64)  { r.last = current }
func (r *recorder) Finish()               { r.finished = true }
func (r *recorder) Error(error)           {}
func (r *recorder) SetDescription(string) {}
