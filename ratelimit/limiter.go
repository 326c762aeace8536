// Package ratelimit bounds request rates per caller and operation with a
// fixed-window counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrInvalidRule = errors.New("rate limit rule requires a positive window and max")

// Rule is the budget for one key: at most Max accepted requests per Window.
type Rule struct {
	Window time.Duration
	Max    int
}

func (r Rule) validate() error {
	if r.Window <= 0 || r.Max <= 0 {
		return ErrInvalidRule
	}
	return nil
}

// Result reports the outcome of a single Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window that rejected the request
// resets, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// Limiter applies fixed-window rules to keys of the form
// "<operation>:<client identity>".
type Limiter struct {
	mu      sync.Mutex
	store   Store
	now     func() time.Time
	metrics *Metrics
}

func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Store() Store {
	return l.store
}

// Check records a request for key against rule. A rejected request does not
// consume budget. A request arriving exactly at the reset instant opens the
// next window.
func (l *Limiter) Check(ctx context.Context, key string, rule Rule) (Result, error) {
	if err := rule.validate(); err != nil {
		return Result{}, err
	}
	now := l.now()

	res, err := l.take(ctx, key, rule, now)
	if err != nil {
		l.metrics.observeError()
		return Result{}, fmt.Errorf("rate limit %q: %w", key, err)
	}
	l.metrics.observe(operationOf(key), res.Allowed)
	return res, nil
}

func (l *Limiter) take(ctx context.Context, key string, rule Rule, now time.Time) (Result, error) {
	if atomic, ok := l.store.(AtomicStore); ok {
		return atomic.Take(ctx, key, rule, now)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}

	if !found || !now.Before(entry.ResetAt) {
		entry = Entry{Count: 1, ResetAt: now.Add(rule.Window)}
		if err := l.store.Set(ctx, key, entry); err != nil {
			return Result{}, err
		}
		return Result{Allowed: true, Limit: rule.Max, Remaining: rule.Max - 1, ResetAt: entry.ResetAt}, nil
	}

	if entry.Count >= rule.Max {
		return Result{Allowed: false, Limit: rule.Max, Remaining: 0, ResetAt: entry.ResetAt}, nil
	}

	entry.Count++
	if err := l.store.Set(ctx, key, entry); err != nil {
		return Result{}, err
	}
	return Result{Allowed: true, Limit: rule.Max, Remaining: rule.Max - entry.Count, ResetAt: entry.ResetAt}, nil
}

// Reset forgets the window for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Delete(ctx, key)
}

// Sweep removes every entry whose window has elapsed.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed, err := l.store.Sweep(ctx, l.now())
	if err != nil {
		return 0, err
	}
	l.metrics.observeSweep(removed)
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration, onErr func(error)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Sweep(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

// Key joins an operation name and a client identity.
func Key(operation, client string) string {
	return strings.TrimSpace(operation) + ":" + strings.TrimSpace(client)
}

func operationOf(key string) string {
	op, _, found := strings.Cut(key, ":")
	if !found || op == "" {
		return "unknown"
	}
	return op
}
