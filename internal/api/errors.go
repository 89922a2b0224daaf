package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/schoolroster/roster-client/internal/constants"
)

// AuthErrorKind distinguishes the two authentication failures the backend reports.
type AuthErrorKind int

const (
	// Unauthorized is a 401: bad credentials or an expired token.
	Unauthorized AuthErrorKind = iota
	// TooManyAttempts is a 429 from the login rate limiter.
	TooManyAttempts
)

// Sentinels matched by AuthError.Is.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyAttempts = errors.New("too many attempts")
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// AuthError is returned for 401 and 429 responses.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	// RetryAfter is the lockout in seconds; only set for TooManyAttempts.
	RetryAfter int
}

func (e *AuthError) Error() string {
	if e.Kind == TooManyAttempts {
		if e.Message != "" {
			return fmt.Sprintf("too many attempts (retry after %ds): %s", e.RetryAfter, e.Message)
		}
		return fmt.Sprintf("too many attempts (retry after %ds)", e.RetryAfter)
	}
	if e.Message != "" {
		return "unauthorized: " + e.Message
	}
	return "unauthorized"
}

// Is lets errors.Is(err, ErrUnauthorized) and errors.Is(err, ErrTooManyAttempts) work.
func (e *AuthError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == Unauthorized
	case ErrTooManyAttempts:
		return e.Kind == TooManyAttempts
	}
	return false
}

// ConflictError is a 409, e.g. a username that is already taken.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "conflict"
	}
	return "conflict: " + e.Message
}

// NotFoundError is a 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message == "" {
		return "not found"
	}
	return "not found: " + e.Message
}

// ServerError covers every other failure: 400 with its message, 5xx, an
// unreadable body, or a network failure (StatusCode 0).
type ServerError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServerError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" failed: ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "status %d", e.StatusCode)
	} else {
		b.WriteString("network error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is a transport failure with no HTTP status.
func IsNetworkError(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == 0
}

// Message returns the backend-provided reason carried by err, or "" if there is none.
func Message(err error) string {
	var authErr *AuthError
	var conflict *ConflictError
	var notFound *NotFoundError
	var server *ServerError
	switch {
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &conflict):
		return conflict.Message
	case errors.As(err, &notFound):
		return notFound.Message
	case errors.As(err, &server):
		if server.StatusCode == 0 {
			return ""
		}
		return server.Message
	}
	return ""
}

// errorBody is the union of the error shapes the backend produces:
// {message}, {error, message, retryAfter}, and {code, message}.
type errorBody struct {
	Code       string          `json:"code"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	RetryAfter json.RawMessage `json:"retryAfter"`
}

// parseErrorBody extracts a human-readable message and an optional retryAfter
// (seconds, 0 when absent) from an error response body.
func parseErrorBody(body []byte) (string, int) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", 0
	}

	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, 0
	}

	var eb errorBody
	if err := json.Unmarshal([]byte(trimmed), &eb); err != nil {
		return trimmed, 0
	}
	retryAfter := parseRetryAfterValue(eb.RetryAfter)

	if eb.Message != "" {
		return eb.Message, retryAfter
	}
	if eb.Error != "" {
		return eb.Error, retryAfter
	}

	// Field validation errors: {"username": "must not be blank", ...}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
		keys := make([]string, 0, len(fields))
		for k, v := range fields {
			if _, ok := v.(string); ok && k != "code" && k != "timestamp" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+fields[k].(string))
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; "), retryAfter
		}
	}

	return eb.Code, retryAfter
}

func parseRetryAfterValue(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

// normalizeRetryAfter applies the default lockout for missing or non-positive values.
func normalizeRetryAfter(seconds int) int {
	if seconds <= 0 {
		return int(constants.DefaultRetryAfter.Seconds())
	}
	return seconds
}

// classifyResponse turns a non-2xx response into the error taxonomy.
// The body is read (bounded) but not closed.
func classifyResponse(op string, resp *nethttp.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message, retryAfter := parseErrorBody(body)

	switch resp.StatusCode {
	case nethttp.StatusUnauthorized:
		return &AuthError{Kind: Unauthorized, Message: message}

	case nethttp.StatusTooManyRequests:
		if retryAfter <= 0 {
			if v, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil {
				retryAfter = v
			}
		}
		return &AuthError{Kind: TooManyAttempts, Message: message, RetryAfter: normalizeRetryAfter(retryAfter)}

	case nethttp.StatusConflict:
		return &ConflictError{Message: message}

	case nethttp.StatusNotFound:
		return &NotFoundError{Message: message}

	default:
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: message}
	}
}
