// Package retry provides the bounded retry policy shared by every backend
// client. The oracle uses an exponential policy, the search backend a
// fixed-delay one; both are the same Policy with different parameters.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/ppiankov/almanac/internal/model"
)

// Policy configures bounded retries with optional exponential backoff.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the first retry. Zero disables waiting.
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry. 1 means a fixed delay.
	Multiplier float64

	// Jitter is the maximum jitter as a fraction of the delay (0-1).
	Jitter float64
}

// Exponential returns the oracle policy: doubling delays.
func Exponential(attempts int, initial, max time.Duration) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: initial, MaxDelay: max, Multiplier: 2, Jitter: 0.2}
}

// Fixed returns a policy that waits the same delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: delay, MaxDelay: delay, Multiplier: 1}
}

// FromConfig converts the serializable config form.
func FromConfig(c model.RetryPolicyConfig) Policy {
	p := Policy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
	}
	if p.Multiplier > 1 {
		p.Jitter = 0.2
	}
	return p
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry: delays must not be negative")
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("retry: max delay %v below initial delay %v", p.MaxDelay, p.InitialDelay)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("retry: multiplier must be >= 1, got %v", p.Multiplier)
	}
	return nil
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// RetryableStatus reports whether an HTTP status code is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns a permanent error, the context is
// done, or the attempts are exhausted. It returns the number of attempts made
// and the last error.
func Do(ctx context.Context, p Policy, fn Func) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if IsPermanent(lastErr) || errors.Is(lastErr, context.Canceled) {
			return attempt, lastErr
		}
		if attempt == attempts {
			break
		}

		if wait := jittered(delay, p.Jitter); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, ctx.Err()
			case <-timer.C:
			}
		}
		delay = next(delay, p.Multiplier, p.MaxDelay)
	}

	return attempts, lastErr
}

func jittered(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	factor := 1.0 + (rand.Float64()*2-1)*jitter
	return time.Duration(float64(base) * factor)
}

func next(current time.Duration, multiplier float64, max time.Duration) time.Duration {
	if multiplier <= 1 {
		return current
	}
	n := time.Duration(float64(current) * multiplier)
	if max > 0 && n > max {
		return max
	}
	return n
}
