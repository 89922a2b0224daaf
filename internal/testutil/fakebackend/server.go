// Package fakebackend is an in-memory roster backend for tests. It speaks the
// same HTTP contract as the real service: auth, paginated student listing with
// search and level filters, CRUD, and CSV export/import.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/schoolroster/roster-client/internal/models"
)

// Request is one call the server received.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	RequestID     string
}

// Server is a fake roster backend listening on a local port.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]string // username -> password
	tokens   map[string]string // token -> username
	students []models.Student
	nextID   int64
	requests []Request

	loginAttempts int
	failNext      []cannedResponse

	// LoginLimit blocks logins after this many attempts (0 = unlimited).
	LoginLimit int
	// BlockLogin answers every login with 429.
	BlockLogin bool
	// RetryAfter is reported in the 429 body; 0 omits the field.
	RetryAfter int
	// ListHook, when set, runs before a list response is written.
	// Tests use it to hold responses and reorder them.
	ListHook func(query url.Values)
}

type cannedResponse struct {
	status      int
	contentType string
	body        string
}

// New starts a fake backend with one account (admin / secret123).
func New() *Server {
	s := &Server{
		users:      map[string]string{"admin": "secret123"},
		tokens:     make(map[string]string),
		nextID:     1,
		RetryAfter: 60,
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record, s.canned)

	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)

	students := r.PathPrefix("/api/students").Subrouter()
	students.Use(s.requireToken)
	students.HandleFunc("", s.handleList).Methods(http.MethodGet)
	students.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	students.HandleFunc("/export/csv", s.handleExport).Methods(http.MethodGet)
	students.HandleFunc("/import/csv", s.handleImport).Methods(http.MethodPost)
	students.HandleFunc("/{id:[0-9]+}", s.handleGet).Methods(http.MethodGet)
	students.HandleFunc("/{id:[0-9]+}", s.handleUpdate).Methods(http.MethodPut)
	students.HandleFunc("/{id:[0-9]+}", s.handleDelete).Methods(http.MethodDelete)

	return r
}

// Seed adds students with generated IDs.
func (s *Server) Seed(students ...models.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range students {
		st.ID = s.nextID
		s.nextID++
		s.students = append(s.students, st)
	}
}

// SeedN adds n students named student01..studentNN at level L1.
func (s *Server) SeedN(n int) {
	for i := 1; i <= n; i++ {
		s.Seed(models.Student{Username: fmt.Sprintf("student%02d", i), Level: models.LevelL1})
	}
}

// Students returns a copy of the stored students.
func (s *Server) Students() []models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Student, len(s.students))
	copy(out, s.students)
	return out
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests counts requests matching method and path.
func (s *Server) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// FailNext makes the next request answer with status and body.
// A body starting with "{" is sent as JSON, anything else as plain text.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct := "text/plain"
	if strings.HasPrefix(strings.TrimSpace(body), "{") {
		ct = "application/json"
	}
	s.failNext = append(s.failNext, cannedResponse{status: status, contentType: ct, body: body})
}

// SetListHook installs (or clears, with nil) the list hook while the server is running.
func (s *Server) SetListHook(hook func(query url.Values)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListHook = hook
}

// IssueToken returns a valid token for username without a login call.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "token-" + username + "-" + strconv.Itoa(len(s.tokens)+1)
	s.tokens[token] = username
	return token
}

// RevokeTokens invalidates every issued token, so authenticated calls get 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) canned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var c *cannedResponse
		if len(s.failNext) > 0 {
			c = &s.failNext[0]
			s.failNext = s.failNext[1:]
		}
		s.mu.Unlock()

		if c == nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", c.contentType)
		w.WriteHeader(c.status)
		io.WriteString(w, c.body)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		_, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed body")
		return
	}

	s.mu.Lock()
	s.loginAttempts++
	blocked := s.BlockLogin || (s.LoginLimit > 0 && s.loginAttempts > s.LoginLimit)
	retryAfter := s.RetryAfter
	password, known := s.users[creds.Username]
	s.mu.Unlock()

	if blocked {
		body := map[string]interface{}{
			"error":   "Too many attempts",
			"message": fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", retryAfter),
		}
		if retryAfter != 0 {
			body["retryAfter"] = retryAfter
		}
		writeJSON(w, http.StatusTooManyRequests, body)
		return
	}

	if !known || password != creds.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, models.AuthResponse{Token: s.IssueToken(creds.Username)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed body")
		return
	}
	if len(strings.TrimSpace(req.Username)) < 3 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"username": "size must be between 3 and 20"})
		return
	}

	s.mu.Lock()
	_, exists := s.users[req.Username]
	if !exists {
		s.users[req.Username] = req.Password
	}
	s.mu.Unlock()

	if exists {
		writeError(w, http.StatusConflict, "CONFLICT", "Username already exists")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Admin created successfully"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 0)
	size := atoiDefault(q.Get("size"), 10)
	if size <= 0 {
		size = 10
	}
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))
	level := models.Level(strings.ToUpper(q.Get("level")))

	s.mu.Lock()
	var matched []models.Student
	for _, st := range s.students {
		if search != "" && !strings.Contains(strings.ToLower(st.Username), search) {
			continue
		}
		if level.IsSet() && st.Level != level {
			continue
		}
		matched = append(matched, st)
	}
	hook := s.ListHook
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := page * size
	end := start + size
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	content := append([]models.Student{}, matched[start:end]...)

	if hook != nil {
		hook(q)
	}
	writeJSON(w, http.StatusOK, models.NewPage(content, page, size, len(matched)))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.students {
		if st.ID == id {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Student not found with id: %d", id))
}

func decodeStudentRequest(w http.ResponseWriter, r *http.Request) (models.StudentRequest, bool) {
	var req models.StudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed body")
		return req, false
	}
	if strings.TrimSpace(req.Username) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"username": "must not be blank"})
		return req, false
	}
	if !req.Level.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"level": "must not be null"})
		return req, false
	}
	return req, true
}

func (s *Server) usernameTakenLocked(username string, exceptID int64) bool {
	for _, st := range s.students {
		if st.Username == username && st.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStudentRequest(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.usernameTakenLocked(req.Username, 0) {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "CONFLICT", "Username already exists: "+req.Username)
		return
	}
	st := models.Student{ID: s.nextID, Username: req.Username, Level: req.Level}
	s.nextID++
	s.students = append(s.students, st)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	req, ok := decodeStudentRequest(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.students {
		if st.ID != id {
			continue
		}
		if s.usernameTakenLocked(req.Username, id) {
			writeError(w, http.StatusConflict, "CONFLICT", "Username already exists: "+req.Username)
			return
		}
		s.students[i].Username = req.Username
		s.students[i].Level = req.Level
		writeJSON(w, http.StatusOK, s.students[i])
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Student not found with id: %d", id))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.students {
		if st.ID == id {
			s.students = append(s.students[:i], s.students[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Student not found with id: %d", id))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var b strings.Builder
	if len(s.students) > 0 {
		b.WriteString("username,level\n")
		for _, st := range s.students {
			fmt.Fprintf(&b, "%s,%s\n", st.Username, st.Level)
		}
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=students.csv")
	io.WriteString(w, b.String())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Uploaded file is missing")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Uploaded file is empty")
		return
	}

	var parsed []models.Student
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		level, err := models.ParseLevel(parts[1])
		if err != nil || !level.IsSet() {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to import CSV: invalid level on line "+strconv.Itoa(i+1))
			return
		}
		parsed = append(parsed, models.Student{Username: strings.TrimSpace(parts[0]), Level: level})
	}

	s.mu.Lock()
	for _, st := range parsed {
		if s.usernameTakenLocked(st.Username, 0) {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to import CSV: Username already exists: "+st.Username)
			return
		}
	}
	for _, st := range parsed {
		st.ID = s.nextID
		s.nextID++
		s.students = append(s.students, st)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "Students imported successfully")
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
