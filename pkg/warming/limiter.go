// Package warming caps how many messages go out per UTC day, keeping new
// sender domains inside provider warm-up allowances.
package warming

import (
	"context"
	"sync"
	"time"
)

// Limiter is the per-day send budget consulted by dispatch loops. A limit
// of zero or below means unlimited. Implementations reset automatically at
// UTC midnight.
type Limiter interface {
	// CanSend reports whether at least one more send fits today's budget.
	CanSend(ctx context.Context) (bool, error)
	// RecordSend consumes one unit of today's budget. Called once per
	// successful delivery, never for failures or skips.
	RecordSend(ctx context.Context) error
	// Remaining returns how many sends are left today; -1 when unlimited.
	Remaining(ctx context.Context) (int, error)
	// SentToday returns how many sends were recorded today.
	SentToday(ctx context.Context) (int, error)
}

// DailyLimiter is the in-process Limiter. State lives in memory, so the
// budget is per instance; multi-replica deployments use the Redis variant.
type DailyLimiter struct {
	limit int
	now   func() time.Time

	mu   sync.Mutex
	day  string
	sent int
}

// NewDailyLimiter creates an in-memory limiter. limit <= 0 disables capping.
func NewDailyLimiter(limit int) *DailyLimiter {
	return &DailyLimiter{limit: limit, now: time.Now}
}

// currentDay rolls the counter when the UTC date has changed.
// Caller must hold mu.
func (l *DailyLimiter) currentDay() {
	day := l.now().UTC().Format("2006-01-02")
	if day != l.day {
		l.day = day
		l.sent = 0
	}
}

func (l *DailyLimiter) CanSend(_ context.Context) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentDay()
	return l.sent < l.limit, nil
}

func (l *DailyLimiter) RecordSend(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentDay()
	l.sent++
	return nil
}

func (l *DailyLimiter) Remaining(_ context.Context) (int, error) {
	if l.limit <= 0 {
		return -1, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentDay()
	remaining := l.limit - l.sent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *DailyLimiter) SentToday(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentDay()
	return l.sent, nil
}

// Limit returns the configured daily cap.
func (l *DailyLimiter) Limit() int {
	return l.limit
}
