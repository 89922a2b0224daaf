package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/schoolroster/roster-client/internal/logging"
)

// Limiter is a token bucket shared by every gateway call of one client.
// The bucket holds at most burst tokens and refills at rate tokens per second.
type Limiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   *logging.Logger
	tokens   float64
	burst    float64
	rate     float64
	refilled time.Time
	warned   time.Time
}

// New creates a full bucket. A nil clock means wall time.
func New(rate float64, burst int, clk clock.Clock) *Limiter {
	if rate <= 0 {
		rate = DefaultRatePerSec
	}
	if burst < 1 {
		burst = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Limiter{
		clock:    clk,
		logger:   logging.NewNopLogger(),
		tokens:   float64(burst),
		burst:    float64(burst),
		rate:     rate,
		refilled: clk.Now(),
	}
}

// SetLogger sets where long-wait warnings go.
func (l *Limiter) SetLogger(logger *logging.Logger) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	l.mu.Lock()
	l.logger = logger
	l.mu.Unlock()
}

// Wait takes one token, sleeping until one is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delay, ok := l.take()
		if ok {
			if waited := l.clock.Since(start); waited > SlowWaitThreshold {
				l.logger.Info().Dur("waited", waited).Msg("Request pacing wait completed")
			}
			return nil
		}
		l.warnIfSlow(delay)

		timer := l.clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without blocking and reports whether it got one.
func (l *Limiter) TryAcquire() bool {
	_, ok := l.take()
	return ok
}

// Delay is how long a caller would wait for the next token right now.
func (l *Limiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.delayLocked()
}

// Tokens returns the tokens currently in the bucket.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return l.tokens
}

// Drain empties the bucket, e.g. after the backend answered 429.
func (l *Limiter) Drain() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = 0
	l.refilled = l.clock.Now()
}

// take consumes a token, or returns the delay until one is due.
func (l *Limiter) take() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}
	return l.delayLocked(), false
}

func (l *Limiter) refillLocked() {
	now := l.clock.Now()
	l.tokens += now.Sub(l.refilled).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.refilled = now
}

func (l *Limiter) delayLocked() time.Duration {
	missing := 1 - l.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / l.rate * float64(time.Second))
}

func (l *Limiter) warnIfSlow(delay time.Duration) {
	if delay <= WarnWaitThreshold {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if now := l.clock.Now(); now.Sub(l.warned) > WarnInterval {
		l.logger.Warn().Dur("delay", delay).Msg("Pacing requests to the roster API")
		l.warned = now
	}
}
