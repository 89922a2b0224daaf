package constants

import (
	"time"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// List defaults. These are the values a list view falls back to when the URL
// does not carry them.
const (
	// DefaultPage is the zero-based page index shown on first mount
	DefaultPage = 0

	// DefaultPageSize matches the page size the list view has always used
	DefaultPageSize = 5

	// MaxPageSize caps user-supplied sizes so a typo can't fetch the whole roster
	MaxPageSize = 100
)

// Login throttling
const (
	// DefaultRetryAfter is used when a 429 carries no retry hint (60 seconds,
	// the backend's window)
	DefaultRetryAfter = 60 * time.Second

	// ThrottleTickInterval - the countdown decrements once per tick
	ThrottleTickInterval = 1 * time.Second
)

// Notifications
const (
	// NoticeClearDelay - transient success notices disappear after 3 seconds
	NoticeClearDelay = 3 * time.Second
)

// Bulk transfer
const (
	// ExportFilename is the fixed name exports are saved under
	ExportFilename = "students.csv"

	// ImportFormField is the multipart field the backend reads the CSV from
	ImportFormField = "file"

	// CSVContentType is what the export endpoint returns
	CSVContentType = "text/csv"
)

// API and Context Timeouts
const (
	// APIContextTimeout - default timeout for a single API call (30 seconds)
	APIContextTimeout = 30 * time.Second

	// TransferContextTimeout - import/export can take longer on big rosters
	TransferContextTimeout = 5 * time.Minute
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPClientTimeout - overall request timeout when the config sets none
	HTTPClientTimeout = 60 * time.Second
)

// Rate Limiter Timeouts
const (
	// RateLimitWarningThreshold - warn user if wait exceeds this (2 seconds)
	RateLimitWarningThreshold = 2 * time.Second

	// RateLimitWarningInterval - minimum time between rate limit warnings (10 seconds)
	RateLimitWarningInterval = 10 * time.Second
)

// Request headers
const (
	// RequestIDHeader carries a per-call UUID so client and server logs line up
	RequestIDHeader = "X-Request-ID"

	// UserAgentPrefix is followed by the build version
	UserAgentPrefix = "roster-client/"
)
