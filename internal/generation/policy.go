package generation

import (
	"context"
	"time"
)

// Default polling policy: 20 checks, 5 seconds apart, for a worst case of
// 100 seconds per generation.
const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 20
)

// Backoff returns the wait before the given attempt (0-based).
type Backoff func(attempt int, interval time.Duration) time.Duration

// ConstantBackoff waits interval before every attempt.
func ConstantBackoff(_ int, interval time.Duration) time.Duration {
	return interval
}

// ExponentialBackoff doubles the wait on every attempt up to max.
func ExponentialBackoff(max time.Duration) Backoff {
	return func(attempt int, interval time.Duration) time.Duration {
		d := interval
		for i := 0; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// BackoffByName resolves a configured backoff name. Unknown names are constant.
func BackoffByName(name string, max time.Duration) Backoff {
	if name == "exponential" {
		return ExponentialBackoff(max)
	}
	return ConstantBackoff
}

// Policy bounds how long a job is watched.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	Backoff     Backoff
}

// DefaultPolicy returns the 5s / 20 attempts / constant policy.
func DefaultPolicy() Policy {
	return Policy{Interval: DefaultInterval, MaxAttempts: DefaultMaxAttempts, Backoff: ConstantBackoff}
}

// withDefaults fills unset fields.
func (p Policy) withDefaults() Policy {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = ConstantBackoff
	}
	return p
}

// Wait returns the delay before attempt.
func (p Policy) Wait(attempt int) time.Duration {
	p = p.withDefaults()
	return p.Backoff(attempt, p.Interval)
}

// Sleeper suspends for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// RealSleeper waits on the wall clock.
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
})
