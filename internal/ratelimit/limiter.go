// Package ratelimit enforces per-user fixed-window generation limits.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"productshot/internal/domain"
)

// WindowStatus describes one window after a check.
type WindowStatus struct {
	Kind      domain.WindowKind `json:"kind"`
	Limit     int               `json:"limit"`
	Count     int               `json:"count"`
	Remaining int               `json:"remaining"`
	ResetAt   time.Time         `json:"reset_at"`
}

// Decision is the outcome of a rate-limit check. BlockedBy names the window
// that rejected the request and is empty when Allowed.
type Decision struct {
	Allowed   bool              `json:"allowed"`
	PerMinute WindowStatus      `json:"per_minute"`
	PerDay    WindowStatus      `json:"per_day"`
	BlockedBy domain.WindowKind `json:"blocked_by,omitempty"`
}

// Err converts a rejected decision into a *domain.RateLimitError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	w := d.PerMinute
	if d.BlockedBy == domain.WindowPerDay {
		w = d.PerDay
	}
	return &domain.RateLimitError{Window: w.Kind, Limit: w.Limit, ResetAt: w.ResetAt}
}

// Limits configures the window ceilings.
type Limits struct {
	PerMinute int
	PerDay    int
}

// Limiter checks and consumes usage against the per-minute and per-day windows.
type Limiter struct {
	store  domain.UsageRepository
	limits Limits
	now    func() time.Time
	logger zerolog.Logger
}

func New(store domain.UsageRepository, limits Limits, logger zerolog.Logger) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if limits.PerMinute <= 0 || limits.PerDay <= 0 {
		return nil, fmt.Errorf("ratelimit: limits must be positive, got %d/%d", limits.PerMinute, limits.PerDay)
	}
	return &Limiter{
		store:  store,
		limits: limits,
		now:    time.Now,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// windows returns the current windows, per-minute first. Stores lock rows in
// this order.
func (l *Limiter) windows(now time.Time) []domain.UsageWindow {
	return []domain.UsageWindow{
		{Kind: domain.WindowPerMinute, Start: domain.WindowPerMinute.Start(now), Limit: l.limits.PerMinute},
		{Kind: domain.WindowPerDay, Start: domain.WindowPerDay.Start(now), Limit: l.limits.PerDay},
	}
}

// CheckAndConsume admits the request and counts it against both windows, or
// rejects it without counting. The check and increment are one atomic store
// operation.
func (l *Limiter) CheckAndConsume(ctx context.Context, userID string) (Decision, error) {
	windows := l.windows(l.now())
	counts, allowed, err := l.store.Consume(ctx, userID, windows)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: consume: %w", err)
	}
	d := decide(windows, counts, allowed)
	if !d.Allowed {
		l.logger.Info().
			Str("user_id", userID).
			Str("blocked_by", string(d.BlockedBy)).
			Int("minute_count", d.PerMinute.Count).
			Int("day_count", d.PerDay.Count).
			Msg("rate limit reached")
	}
	return d, nil
}

// Peek reports the current window state without consuming.
func (l *Limiter) Peek(ctx context.Context, userID string) (Decision, error) {
	windows := l.windows(l.now())
	counts, err := l.store.Counts(ctx, userID, windows)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: counts: %w", err)
	}
	allowed := true
	for i, w := range windows {
		if counts[i] >= w.Limit {
			allowed = false
		}
	}
	return decide(windows, counts, allowed), nil
}

// PurgeStale deletes counters for windows that have already closed.
func (l *Limiter) PurgeStale(ctx context.Context) (int64, error) {
	var total int64
	for _, w := range l.windows(l.now()) {
		n, err := l.store.PurgeBefore(ctx, w.Kind, w.Start)
		if err != nil {
			return total, fmt.Errorf("ratelimit: purge %s: %w", w.Kind, err)
		}
		total += n
	}
	return total, nil
}

func decide(windows []domain.UsageWindow, counts []int, allowed bool) Decision {
	d := Decision{Allowed: allowed}
	for i, w := range windows {
		status := WindowStatus{
			Kind:      w.Kind,
			Limit:     w.Limit,
			Count:     counts[i],
			Remaining: max(w.Limit-counts[i], 0),
			ResetAt:   w.End(),
		}
		switch w.Kind {
		case domain.WindowPerMinute:
			d.PerMinute = status
		case domain.WindowPerDay:
			d.PerDay = status
		}
		if !allowed && d.BlockedBy == "" && counts[i] >= w.Limit {
			d.BlockedBy = w.Kind
		}
	}
	return d
}
