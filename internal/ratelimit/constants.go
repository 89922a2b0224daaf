// Package ratelimit paces outgoing calls to the roster backend.
package ratelimit

import "time"

// Client-side pacing defaults. The backend enforces its own limits (the login
// endpoint answers 429 with retryAfter); these only keep a scripted CLI session
// from hammering the API.
const (
	// DefaultRatePerSec is the sustained request rate.
	DefaultRatePerSec = 5.0

	// DefaultBurst allows a short burst, e.g. a reload right after a delete.
	DefaultBurst = 10
)

// Wait warnings
const (
	// WarnWaitThreshold is the wait above which the limiter logs a warning.
	WarnWaitThreshold = 2 * time.Second

	// WarnInterval throttles the warning itself.
	WarnInterval = 10 * time.Second

	// SlowWaitThreshold is the completed wait above which the limiter logs how long it took.
	SlowWaitThreshold = 5 * time.Second
)
