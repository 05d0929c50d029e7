// Package retry runs an operation a bounded number of times with a
// backoff pause between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls how many attempts an operation gets and how long to
// pause between them. The pause happens between attempts only; a failed
// final attempt returns immediately.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff maps the just-failed attempt number (1-based) to the pause
	// before the next attempt. Nil means DefaultBackoff.
	Backoff func(attempt int) time.Duration
	// Sleep is swappable for tests. Nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff doubles per attempt: 1s, 2s, 4s, ...
func DefaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

// NewPolicy returns a policy with the default exponential backoff.
func NewPolicy(maxAttempts int) *Policy {
	return &Policy{MaxAttempts: maxAttempts, Backoff: DefaultBackoff}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds or MaxAttempts is exhausted. It returns nil
// on the first success, the last error on exhaustion, or the context error
// if ctx ends during a pause.
func (p *Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt < attempts {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
