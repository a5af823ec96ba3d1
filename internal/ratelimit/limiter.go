// Package ratelimit enforces the arXiv and OCR call quotas for the service.
//
// Unlike a token bucket, the quotas here are expressed the way the upstream
// services document them: a sliding one-minute window, a per-UTC-day budget,
// and a minimum spacing between consecutive calls. Acquire never blocks; it
// either admits the call or rejects it so the caller can surface "try later".
package ratelimit

import (
	"sync"
	"time"

	"github.com/helixir/arxiv-query-service/internal/domain"
)

// Default quota values, matching arXiv's published usage guidance.
const (
	DefaultMaxCallsPerMinute = 30
	DefaultMaxCallsPerDay    = 2000
	DefaultMinInterval       = time.Second
)

// Config holds the quota limits for a Limiter.
type Config struct {
	// MaxCallsPerMinute caps admitted calls in any rolling 60-second window.
	MaxCallsPerMinute int

	// MaxCallsPerDay caps admitted calls per UTC day. The counter resets at
	// UTC midnight.
	MaxCallsPerDay int

	// MinInterval is the minimum spacing between consecutive admitted calls.
	MinInterval time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.MaxCallsPerMinute == 0 {
		c.MaxCallsPerMinute = DefaultMaxCallsPerMinute
	}
	if c.MaxCallsPerDay == 0 {
		c.MaxCallsPerDay = DefaultMaxCallsPerDay
	}
	if c.MinInterval == 0 {
		c.MinInterval = DefaultMinInterval
	}
}

// Stats is a read-only snapshot of limiter state for observability tooling.
type Stats struct {
	TotalCalls      int64         `json:"total_calls"`
	CallsLastMinute int           `json:"calls_last_minute"`
	CallsToday      int           `json:"calls_today"`
	MinuteLimit     int           `json:"minute_limit"`
	DayLimit        int           `json:"day_limit"`
	MinInterval     time.Duration `json:"min_interval"`
}

// Limiter tracks recent call timestamps and admits or rejects calls against
// the configured quotas. It is safe for concurrent use; all three checks and
// the subsequent state update happen under one mutex, so a rejected call
// leaves no partial state behind.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	minuteCalls []time.Time
	dayCount    int
	dayStart    time.Time // UTC midnight of the day dayCount covers
	lastCall    time.Time
	totalCalls  int64
}

// New creates a Limiter with the given quota configuration.
func New(cfg Config) *Limiter {
	cfg.applyDefaults()
	return &Limiter{
		cfg: cfg,
		now: time.Now,
	}
}

// NewWithClock creates a Limiter with an injected clock. Tests use this to
// drive the minute window and day rollover deterministically.
func NewWithClock(cfg Config, now func() time.Time) *Limiter {
	cfg.applyDefaults()
	return &Limiter{
		cfg: cfg,
		now: now,
	}
}

// Acquire admits one outbound call or rejects it with a RateLimitError.
// It must be called immediately before every call to the arXiv API or the
// OCR service. On rejection no state is recorded.
func (l *Limiter) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	l.evictLocked(now)

	if len(l.minuteCalls) >= l.cfg.MaxCallsPerMinute {
		retryAfter := l.minuteCalls[0].Add(time.Minute).Sub(now)
		return domain.NewRateLimitError("minute quota exhausted", retryAfter)
	}
	if l.dayCount >= l.cfg.MaxCallsPerDay {
		retryAfter := l.dayStart.Add(24 * time.Hour).Sub(now)
		return domain.NewRateLimitError("daily quota exhausted", retryAfter)
	}
	if !l.lastCall.IsZero() {
		if since := now.Sub(l.lastCall); since < l.cfg.MinInterval {
			return domain.NewRateLimitError("minimum call interval not elapsed", l.cfg.MinInterval-since)
		}
	}

	l.minuteCalls = append(l.minuteCalls, now)
	l.dayCount++
	l.lastCall = now
	l.totalCalls++
	return nil
}

// Stats returns a snapshot of the current limiter state. It never mutates
// admitted-call state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	minute := 0
	cutoff := now.Add(-time.Minute)
	for _, ts := range l.minuteCalls {
		if ts.After(cutoff) {
			minute++
		}
	}
	day := l.dayCount
	if !sameUTCDay(l.dayStart, now) {
		day = 0
	}

	return Stats{
		TotalCalls:      l.totalCalls,
		CallsLastMinute: minute,
		CallsToday:      day,
		MinuteLimit:     l.cfg.MaxCallsPerMinute,
		DayLimit:        l.cfg.MaxCallsPerDay,
		MinInterval:     l.cfg.MinInterval,
	}
}

// evictLocked drops minute-window entries older than 60s and rolls the day
// counter over when the UTC day has changed. Callers must hold l.mu.
func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	idx := 0
	for idx < len(l.minuteCalls) && !l.minuteCalls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.minuteCalls = append(l.minuteCalls[:0], l.minuteCalls[idx:]...)
	}

	if l.dayStart.IsZero() || !sameUTCDay(l.dayStart, now) {
		l.dayStart = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		l.dayCount = 0
	}
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
