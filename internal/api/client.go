// Package api is the roster backend gateway: one method per REST endpoint,
// bearer-token attachment, and classification of failures into typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/schoolroster/roster-client/internal/config"
	"github.com/schoolroster/roster-client/internal/constants"
	"github.com/schoolroster/roster-client/internal/http"
	"github.com/schoolroster/roster-client/internal/logging"
	"github.com/schoolroster/roster-client/internal/models"
	"github.com/schoolroster/roster-client/internal/ratelimit"
	"github.com/schoolroster/roster-client/internal/version"
)

// TokenSource supplies the bearer token for authenticated calls.
// The session store implements it.
type TokenSource interface {
	Token() (string, bool)
}

// Client represents the roster API client
type Client struct {
	httpClient *retryablehttp.Client
	config     *config.Config
	baseURL    string
	limiter    *ratelimit.Limiter
	logger     *logging.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func()
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	baseURL := cfg.BaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("API base URL is empty; set api_url in the config or %s", config.EnvAPIURL)
	}

	retryClient, err := http.NewRetryableClient(cfg, logger.Named("http"))
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	limiter := ratelimit.New(cfg.RequestsPerSecond, cfg.Burst, nil)
	limiter.SetLogger(logger)

	return &Client{
		httpClient: retryClient,
		config:     cfg,
		baseURL:    baseURL,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource sets where bearer tokens come from. Nil disables authentication.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// SetUnauthorizedHandler registers fn to run when an authenticated call gets a 401.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) token() string {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	token, ok := ts.Token()
	if !ok {
		return ""
	}
	return token
}

// request describes one call to the backend.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	accept      string
	auth        bool
}

// jsonRequest builds a request with a JSON body (nil body sends none).
func jsonRequest(op, method, path string, body interface{}, auth bool) (request, error) {
	r := request{op: op, method: method, path: path, accept: "application/json", auth: auth}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return r, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r.body = data
		r.contentType = "application/json"
	}
	return r, nil
}

// doRequest performs an HTTP request with authentication and rate limiting.
// Non-2xx responses are classified and returned as errors; on success the
// caller owns the response body.
func (c *Client) doRequest(ctx context.Context, r request) (*nethttp.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ServerError{Op: r.op, Err: fmt.Errorf("rate limiter cancelled: %w", err)}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	if !http.IsIdempotent(r.method) {
		ctx = http.WithoutRetry(ctx)
	}

	var body interface{}
	if r.body != nil {
		body = r.body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, &ServerError{Op: r.op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	requestID := uuid.NewString()
	req.Header.Set(constants.RequestIDHeader, requestID)
	req.Header.Set("User-Agent", constants.UserAgentPrefix+version.Version)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}

	sentToken := false
	if r.auth {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			sentToken = true
		}
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", r.method).
		Str("path", r.path).
		Msg("API call")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.method).
			Str("path", r.path).
			Str("kind", http.ErrorTypeName(http.ClassifyError(err))).
			Err(err).
			Msg("API call failed")

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ServerError{Op: r.op, Err: ctxErr}
		}
		return nil, &ServerError{Op: r.op, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	classified := classifyResponse(r.op, resp)

	switch resp.StatusCode {
	case nethttp.StatusTooManyRequests:
		c.limiter.Drain()
		c.logger.Warn().
			Str("request_id", requestID).
			Str("method", r.method).
			Str("path", r.path).
			Str("retry_after", resp.Header.Get("Retry-After")).
			Msg("THROTTLED: rate limit exceeded")

	case nethttp.StatusUnauthorized:
		if sentToken {
			c.logger.Info().Str("request_id", requestID).Str("path", r.path).Msg("Session rejected by backend")
			c.mu.RLock()
			hook := c.onUnauthorized
			c.mu.RUnlock()
			if hook != nil {
				hook()
			}
		}

	default:
		if resp.StatusCode >= 500 {
			c.logger.Error().
				Str("request_id", requestID).
				Str("method", r.method).
				Str("path", r.path).
				Int("status", resp.StatusCode).
				Msg("Backend error")
		}
	}

	return nil, classified
}

// decodeJSON decodes a success body into v and closes it.
func decodeJSON(op string, resp *nethttp.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// readMessage reads a success body that is either plain text or JSON {message}.
func readMessage(resp *nethttp.Response) string {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message, _ := parseErrorBody(body)
	return message
}

// Login exchanges credentials for a bearer token. No token is attached.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	r, err := jsonRequest("login", nethttp.MethodPost, "/api/auth/login", creds, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	var auth models.AuthResponse
	if err := decodeJSON(r.op, resp, &auth); err != nil {
		return nil, err
	}
	if strings.TrimSpace(auth.Token) == "" {
		return nil, &ServerError{Op: r.op, StatusCode: resp.StatusCode, Message: "response carried no token"}
	}
	return &auth, nil
}

// Register creates an account and returns the backend's confirmation message.
func (c *Client) Register(ctx context.Context, reg models.RegisterRequest) (string, error) {
	r, err := jsonRequest("register", nethttp.MethodPost, "/api/auth/register", reg, false)
	if err != nil {
		return "", err
	}
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return "", err
	}
	return readMessage(resp), nil
}

// ListStudents fetches one page of students. Search and level are sent only when present.
func (c *Client) ListStudents(ctx context.Context, q models.ListQuery) (*models.Page[models.Student], error) {
	r, _ := jsonRequest("list students", nethttp.MethodGet, "/api/students", nil, true)
	r.query = q.Values()

	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	var page models.Page[models.Student]
	if err := decodeJSON(r.op, resp, &page); err != nil {
		return nil, err
	}
	if page.Content == nil {
		page.Content = []models.Student{}
	}
	return &page, nil
}

// GetStudent fetches a single student by ID.
func (c *Client) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	r, _ := jsonRequest("get student", nethttp.MethodGet, studentPath(id), nil, true)
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	var student models.Student
	if err := decodeJSON(r.op, resp, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// CreateStudent adds a student. The backend assigns the ID.
func (c *Client) CreateStudent(ctx context.Context, req models.StudentRequest) (*models.Student, error) {
	r, err := jsonRequest("create student", nethttp.MethodPost, "/api/students", req, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	var student models.Student
	if err := decodeJSON(r.op, resp, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// UpdateStudent replaces a student's username and level.
func (c *Client) UpdateStudent(ctx context.Context, id int64, req models.StudentRequest) (*models.Student, error) {
	r, err := jsonRequest("update student", nethttp.MethodPut, studentPath(id), req, true)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	var student models.Student
	if err := decodeJSON(r.op, resp, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// DeleteStudent removes a student. Both 200 and 204 count as success.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	r, _ := jsonRequest("delete student", nethttp.MethodDelete, studentPath(id), nil, true)
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// ExportCSV downloads every student as CSV. The bytes are returned as is.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	r := request{
		op:     "export students",
		method: nethttp.MethodGet,
		path:   "/api/students/export/csv",
		accept: constants.CSVContentType,
		auth:   true,
	}
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServerError{Op: r.op, StatusCode: resp.StatusCode, Message: "failed to read export", Err: err}
	}
	return data, nil
}

// ImportCSV uploads a CSV file as multipart field "file" and returns the
// backend's confirmation message.
func (c *Client) ImportCSV(ctx context.Context, src io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(constants.ImportFormField, filename)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return "", fmt.Errorf("failed to read import file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	r := request{
		op:          "import students",
		method:      nethttp.MethodPost,
		path:        "/api/students/import/csv",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		auth:        true,
	}
	resp, err := c.doRequest(ctx, r)
	if err != nil {
		return "", err
	}
	return readMessage(resp), nil
}

func studentPath(id int64) string {
	return "/api/students/" + strconv.FormatInt(id, 10)
}

// IsCancelled reports whether err came from a cancelled or expired context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
