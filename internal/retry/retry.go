package retry

import (
	"context"
	"time"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Policy is a fixed-delay bound on attempts. Zero Attempts means
// DefaultAttempts; a zero Delay retries immediately.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Do calls fn until it succeeds or the attempts run out, returning the
// last error. Context cancellation during a wait ends the loop early.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.normalized()
	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}
		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
