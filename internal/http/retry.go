package http

import (
	"context"
	"errors"
	"math/rand"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/schoolroster/roster-client/internal/logging"
)

// ErrorType represents different classes of errors for retry strategy
type ErrorType int

const (
	// ErrorTypeSuccess indicates the round trip completed (any status)
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, etc.)
	ErrorTypeNetwork
	// ErrorTypeCancelled indicates the caller's context ended
	ErrorTypeCancelled
	// ErrorTypeFatal indicates errors that retrying cannot fix (bad URL, TLS config, ...)
	ErrorTypeFatal
)

// ClassifyError determines the error type for retry strategy.
// Only transport failures are considered; HTTP statuses never reach here.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && strings.Contains(strings.ToLower(urlErr.Err.Error()), "unsupported protocol scheme") {
		return ErrorTypeFatal
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return ErrorTypeNetwork
	}

	return ErrorTypeFatal
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeCancelled:
		return "cancelled"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type noRetryKey struct{}

// WithoutRetry marks a request context so RetryPolicy never retries it.
// The gateway uses it for non-idempotent calls (POST).
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey{}, true)
}

func retryDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(noRetryKey{}).(bool)
	return v
}

// IsIdempotent reports whether a request with this method may be repeated safely.
func IsIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case nethttp.MethodGet, nethttp.MethodHead, nethttp.MethodOptions, nethttp.MethodPut, nethttp.MethodDelete:
		return true
	default:
		return false
	}
}

// RetryPolicy is a retryablehttp.CheckRetry that retries network failures only.
// A response with any status, including 429 and 5xx, is returned to the caller as is.
func RetryPolicy(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if retryDisabled(ctx) {
		return false, nil
	}
	if resp != nil {
		return false, nil
	}
	return ClassifyError(err) == ErrorTypeNetwork, nil
}

// CalculateBackoff returns exponential backoff duration with full jitter
//
// Formula: random(0, min(maxDelay, initialDelay * 2^attempt))
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay || base <= 0 {
		base = maxDelay
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// JitterBackoff adapts CalculateBackoff to retryablehttp.Backoff.
func JitterBackoff(min, max time.Duration, attemptNum int, _ *nethttp.Response) time.Duration {
	return CalculateBackoff(attemptNum+1, min, max)
}

// RetryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog.
type RetryLogger struct {
	logger *logging.Logger
}

// NewRetryLogger wraps logger for retryablehttp.
func NewRetryLogger(logger *logging.Logger) *RetryLogger {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RetryLogger{logger: logger}
}

func (l *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Per-request chatter stays at debug
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
