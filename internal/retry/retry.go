// Package retry wraps a single provider or platform call with classified
// exponential-backoff retries. Terminal errors (auth, quota, not-found,
// content policy) fail after one attempt; transient errors back off with
// jitter up to a cap.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"linkforge/internal/logging"
)

// Policy controls retry behavior for one wrapped call.
type Policy struct {
	MaxRetries     int           // Attempts beyond the first (default: 3)
	BaseDelay      time.Duration // First backoff delay (default: 1s)
	MaxDelay       time.Duration // Backoff cap (default: 30s)
	AttemptTimeout time.Duration // Per-attempt timeout, 0 = none
	JitterFactor   float64       // Symmetric jitter fraction (default: 0.2)
}

// DefaultPolicy returns sensible defaults for a standalone call.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 60 * time.Second,
		JitterFactor:   0.2,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.JitterFactor < 0 || p.JitterFactor >= 1 {
		p.JitterFactor = 0.2
	}
	return p
}

// ExhaustedError reports that every attempt for one call was consumed.
// It wraps the last error and records how the final attempt was classified.
type ExhaustedError struct {
	Op       string
	Attempts int
	Kind     Kind
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts (%s): %v", e.Op, e.Attempts, e.Kind, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op under the policy and returns its result. Retryable failures
// sleep `min(base×2^attempt, max) ± jitter` between attempts; terminal
// failures and context cancellation stop immediately. The only error Do
// returns for a failed call is *ExhaustedError wrapping the last error.
func Do[T any](ctx context.Context, op string, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	policy = policy.withDefaults()

	var lastErr error
	var lastKind Kind
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			break
		}
		attempts++

		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		}
		result, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		lastErr = err
		lastKind = Classify(err)

		if !lastKind.Retryable() {
			logging.Get(logging.CategoryProvider).Debug("%s: terminal error (%s), not retrying: %v", op, lastKind, err)
			break
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := Backoff(policy, attempt)
		logging.Get(logging.CategoryProvider).Debug("%s: attempt %d failed (%s), retrying in %v: %v", op, attempts, lastKind, delay, err)

		select {
		case <-ctx.Done():
			// Abandon the remaining attempts; the exhausted error below
			// still reports the last real failure.
			attempt = policy.MaxRetries
		case <-time.After(delay):
		}
	}

	if lastErr == nil {
		lastErr = ctx.Err()
		lastKind = KindTimeout
	}
	return zero, &ExhaustedError{Op: op, Attempts: attempts, Kind: lastKind, Last: lastErr}
}

// Backoff returns the jittered delay before retrying after the given
// zero-based attempt number. The un-jittered sequence is non-decreasing
// up to MaxDelay; jitter stays within ±(delay × JitterFactor).
func Backoff(policy Policy, attempt int) time.Duration {
	policy = policy.withDefaults()

	shift := attempt
	if shift < 0 {
		shift = 0
	}
	if shift > 20 {
		shift = 20
	}
	delay := policy.BaseDelay * time.Duration(1<<shift)
	if delay > policy.MaxDelay || delay <= 0 {
		delay = policy.MaxDelay
	}

	if policy.JitterFactor > 0 {
		span := float64(delay) * policy.JitterFactor
		delay += time.Duration((rand.Float64()*2 - 1) * span)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
