package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.2,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "test", fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != "ok" {
		t.Fatalf("Do() = %q, want %q", result, "ok")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "test", fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if result != 42 {
		t.Fatalf("Do() = %d, want 42", result)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDo_TerminalErrorStopsAfterOneAttempt(t *testing.T) {
	terminals := []string{
		"401 unauthorized",
		"quota exceeded for project",
		"resource not found (404)",
		"request blocked by content policy",
	}
	for _, msg := range terminals {
		calls := 0
		_, err := Do(context.Background(), "test", fastPolicy(5), func(ctx context.Context) (string, error) {
			calls++
			return "", errors.New(msg)
		})
		if err == nil {
			t.Fatalf("Do() with %q: expected error", msg)
		}
		if calls != 1 {
			t.Fatalf("Do() with %q: calls = %d, want 1", msg, calls)
		}
		var exhausted *ExhaustedError
		if !errors.As(err, &exhausted) {
			t.Fatalf("Do() with %q: error type = %T, want *ExhaustedError", msg, err)
		}
		if exhausted.Attempts != 1 {
			t.Fatalf("Do() with %q: Attempts = %d, want 1", msg, exhausted.Attempts)
		}
	}
}

func TestDo_ExhaustsRetriesAndWrapsLastError(t *testing.T) {
	lastErr := errors.New("service unavailable (503)")
	calls := 0
	_, err := Do(context.Background(), "flaky", fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		return "", lastErr
	})
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("calls = %d, want 3", calls)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if !errors.Is(err, lastErr) {
		t.Fatalf("ExhaustedError does not wrap last error: %v", err)
	}
	if exhausted.Op != "flaky" {
		t.Fatalf("Op = %q, want %q", exhausted.Op, "flaky")
	}
}

func TestDo_AttemptTimeoutCountsAsRetryable(t *testing.T) {
	policy := fastPolicy(1)
	policy.AttemptTimeout = 5 * time.Millisecond

	calls := 0
	_, err := Do(context.Background(), "slow", policy, func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (timeout should be retried)", calls)
	}
}

func TestDo_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, "cancelled", fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("network error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestBackoff_SequenceNonDecreasingUpToCap(t *testing.T) {
	policy := Policy{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		JitterFactor: 0, // Disable jitter to check the base sequence
		MaxRetries:   1,
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		d := Backoff(policy, attempt)
		if d < prev {
			t.Fatalf("Backoff(%d) = %v < previous %v", attempt, d, prev)
		}
		if d > policy.MaxDelay {
			t.Fatalf("Backoff(%d) = %v exceeds cap %v", attempt, d, policy.MaxDelay)
		}
		prev = d
	}
}

func TestBackoff_JitterStaysWithinBounds(t *testing.T) {
	policy := Policy{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.25,
		MaxRetries:   1,
	}

	for attempt := 0; attempt < 5; attempt++ {
		base := policy.BaseDelay * time.Duration(1<<attempt)
		lo := time.Duration(float64(base) * (1 - policy.JitterFactor))
		hi := time.Duration(float64(base) * (1 + policy.JitterFactor))
		for i := 0; i < 100; i++ {
			d := Backoff(policy, attempt)
			if d < lo || d > hi {
				t.Fatalf("Backoff(%d) = %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func TestDo_UnclassifiedErrorDefaultsRetryable(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), "weird", fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("something inexplicable happened")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (unknown errors are availability-biased retryable)", calls)
	}
}
