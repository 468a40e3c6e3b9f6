// Package ratelimit admits questions per client under independent hourly and
// daily ceilings.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roteiro-ai/roteiro/pkg/logging"
)

// ErrLimited is matched by errors.Is for every *LimitError.
var ErrLimited = errors.New("rate limit exceeded")

// Window names a counter.
type Window string

const (
	Hourly Window = "hourly"
	Daily  Window = "daily"
)

// Window lengths.
const (
	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour
)

// Limits are the per-client ceilings.
type Limits struct {
	Hourly int64 `json:"hourly" yaml:"hourly"`
	Daily  int64 `json:"daily" yaml:"daily"`
}

// DefaultLimits returns 100 per hour and 500 per day.
func DefaultLimits() Limits {
	return Limits{Hourly: 100, Daily: 500}
}

// Counter is one window's count. ResetAt is zero when the window has not started.
type Counter struct {
	Count   int64     `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

func (c Counter) live(now time.Time) Counter {
	if c.ResetAt.IsZero() || !now.Before(c.ResetAt) {
		return Counter{}
	}
	return c
}

// Usage is a client's current counters.
type Usage struct {
	Hourly Counter `json:"hourly"`
	Daily  Counter `json:"daily"`
}

// Result is the outcome of an admission check.
type Result struct {
	Allowed bool
	Reason  string
	// Window is the violated window when Allowed is false.
	Window     Window
	Usage      Usage
	RetryAfter time.Duration
}

// LimitError carries a rejected Result.
type LimitError struct {
	Result Result
}

func (e *LimitError) Error() string { return e.Result.Reason }

// Is reports whether target is ErrLimited.
func (e *LimitError) Is(target error) bool { return target == ErrLimited }

// Store keeps counters. Consume must check and increment atomically.
type Store interface {
	Consume(ctx context.Context, clientID string, limits Limits, now time.Time) (Result, error)
	Usage(ctx context.Context, clientID string, now time.Time) (Usage, error)
	Close() error
}

// Limiter gates request admission.
type Limiter struct {
	store  Store
	limits Limits
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter.
func New(store Store, limits Limits, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limits: limits,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = logging.OrNop(l.logger)
	return l
}

// Limits returns the configured ceilings.
func (l *Limiter) Limits() Limits { return l.limits }

// CheckAndConsume admits the request and counts it, or reports why not.
// A failing store admits the request.
func (l *Limiter) CheckAndConsume(ctx context.Context, clientID string) Result {
	res, err := l.store.Consume(ctx, clientID, l.limits, l.now())
	if err != nil {
		l.logger.Warn("rate limit store failed, admitting request", zap.Error(err))
		return Result{Allowed: true}
	}
	return res
}

// Status returns a client's usage without consuming.
func (l *Limiter) Status(ctx context.Context, clientID string) (Usage, error) {
	u, err := l.store.Usage(ctx, clientID, l.now())
	if err != nil {
		return Usage{}, fmt.Errorf("rate limit status: %w", err)
	}
	return u, nil
}

// Close releases the store.
func (l *Limiter) Close() error {
	return l.store.Close()
}

// apply runs the admission rules over live counters and returns the updated usage.
// Stores that keep counters themselves call it inside their atomic section.
func apply(u Usage, limits Limits, now time.Time) (Usage, Result) {
	u.Hourly = u.Hourly.live(now)
	u.Daily = u.Daily.live(now)

	if u.Hourly.Count >= limits.Hourly {
		return u, reject(Hourly, limits.Hourly, u, u.Hourly.ResetAt.Sub(now))
	}
	if u.Daily.Count >= limits.Daily {
		return u, reject(Daily, limits.Daily, u, u.Daily.ResetAt.Sub(now))
	}

	u.Hourly = increment(u.Hourly, now, HourWindow)
	u.Daily = increment(u.Daily, now, DayWindow)
	return u, Result{Allowed: true, Usage: u}
}

func increment(c Counter, now time.Time, window time.Duration) Counter {
	if c.Count == 0 {
		c.ResetAt = now.Add(window)
	}
	c.Count++
	return c
}

func reject(w Window, limit int64, u Usage, retry time.Duration) Result {
	if retry < 0 {
		retry = 0
	}
	return Result{
		Allowed:    false,
		Reason:     reason(w, limit),
		Window:     w,
		Usage:      u,
		RetryAfter: retry,
	}
}

func reason(w Window, limit int64) string {
	if w == Hourly {
		return fmt.Sprintf("Limite de %d perguntas por hora atingido. Tente novamente mais tarde.", limit)
	}
	return fmt.Sprintf("Limite de %d perguntas por dia atingido. Tente novamente amanhã.", limit)
}
