package notify

import (
	"context"
	"time"
)

// RetryPolicy is a value object. The zero value is invalid; use
// DefaultRetryPolicy or construct explicitly.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, Factor: 2.0}
}

// Delay returns the wait before the given 1-based attempt. Attempt 1 has no
// delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		d *= p.Factor
	}
	return time.Duration(d)
}

// Run invokes fn up to MaxAttempts times with exponential spacing. It stops
// early when the context is done and returns the last error.
func (p RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if d := p.Delay(attempt); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// RetryingNotifier wraps a Notifier with a RetryPolicy.
type RetryingNotifier struct {
	Next   Notifier
	Policy RetryPolicy
}

func (n RetryingNotifier) Notify(ctx context.Context, event Event) error {
	return n.Policy.Run(ctx, func(ctx context.Context) error {
		return n.Next.Notify(ctx, event)
	})
}
