package platform

import (
	"fmt"
	"math"
	"testing"
	"time"

	"linkforge/internal/retry"
)

func newTestRegistry(t *testing.T, ids ...string) *Registry {
	t.Helper()
	r := NewRegistry(RegistryConfig{Cooldown: 30 * time.Minute, FailureThreshold: 3})
	for _, id := range ids {
		if err := r.Register(id, id+".example.com", 50, false); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}
	return r
}

func TestRegister_DuplicateFails(t *testing.T) {
	r := newTestRegistry(t, "a")
	if err := r.Register("a", "a.example.com", 50, false); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestSuccessRate_MatchesCounters(t *testing.T) {
	r := newTestRegistry(t, "a")

	r.RecordSuccess("a")
	r.RecordFailure("a", retry.KindNetwork, "boom")
	r.RecordSuccess("a")
	r.RecordSuccess("a")

	tgt, ok := r.Get("a")
	if !ok {
		t.Fatal("target a missing")
	}
	want := float64(tgt.TotalSuccesses) / float64(tgt.TotalAttempts) * 100
	if math.Abs(tgt.SuccessRate-want) > 0.001 {
		t.Fatalf("SuccessRate = %v, want %v", tgt.SuccessRate, want)
	}
	if tgt.TotalAttempts != 4 || tgt.TotalSuccesses != 3 {
		t.Fatalf("counters = %d/%d, want 4/3", tgt.TotalAttempts, tgt.TotalSuccesses)
	}
}

func TestHealthThresholds(t *testing.T) {
	r := newTestRegistry(t, "a")

	// 4 successes + 1 failure = 80% -> healthy
	for i := 0; i < 4; i++ {
		r.RecordSuccess("a")
	}
	r.RecordFailure("a", retry.KindAPI, "one failure")
	r.RecordSuccess("a") // Reset consecutive, recompute: 5/6 = 83.3%

	tgt, _ := r.Get("a")
	if tgt.Health != Healthy {
		t.Fatalf("health = %s, want healthy at %.1f%%", tgt.Health, tgt.SuccessRate)
	}

	// Drag the rate under 80 without tripping the breaker
	r.RecordFailure("a", retry.KindAPI, "fail")
	r.RecordSuccess("a")
	r.RecordFailure("a", retry.KindAPI, "fail")

	tgt, _ = r.Get("a")
	if tgt.SuccessRate >= 80 {
		t.Fatalf("test setup wrong: rate = %.1f%%, want < 80", tgt.SuccessRate)
	}
	if tgt.Health != Degraded {
		t.Fatalf("health = %s, want degraded at %.1f%%", tgt.Health, tgt.SuccessRate)
	}
}

func TestConsecutiveFailures_TripBreaker(t *testing.T) {
	r := newTestRegistry(t, "a")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.RecordFailure("a", retry.KindNetwork, "1")
	r.RecordFailure("a", retry.KindNetwork, "2")

	tgt, _ := r.Get("a")
	if tgt.NextRetryAfter != nil {
		t.Fatal("cooldown set before threshold")
	}

	r.RecordFailure("a", retry.KindNetwork, "3")

	tgt, _ = r.Get("a")
	if tgt.Health != Unhealthy {
		t.Fatalf("health = %s, want unhealthy", tgt.Health)
	}
	if tgt.NextRetryAfter == nil {
		t.Fatal("cooldown not set at threshold")
	}
	if got, want := *tgt.NextRetryAfter, base.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("NextRetryAfter = %v, want %v", got, want)
	}
	if !tgt.InCooldown(base) {
		t.Fatal("expected target in cooldown")
	}
}

func TestFailureHistory_Bounded(t *testing.T) {
	r := newTestRegistry(t, "a")

	for i := 0; i < 25; i++ {
		r.RecordFailure("a", retry.KindAPI, fmt.Sprintf("failure %d", i))
	}

	tgt, _ := r.Get("a")
	if len(tgt.FailureHistory) != maxFailureHistory {
		t.Fatalf("history length = %d, want %d", len(tgt.FailureHistory), maxFailureHistory)
	}
	// Oldest entries dropped: the first kept entry is failure 15
	if tgt.FailureHistory[0].Message != "failure 15" {
		t.Fatalf("oldest kept = %q, want %q", tgt.FailureHistory[0].Message, "failure 15")
	}
}

func TestSelection_OrderAndExclusions(t *testing.T) {
	r := newTestRegistry(t, "good", "better", "shaky", "broken", "off")

	// better: 100%, good: 50% degraded... set up tiers via records.
	r.RecordSuccess("better")

	// good: 5/6 ~ 83% healthy
	for i := 0; i < 5; i++ {
		r.RecordSuccess("good")
	}
	r.RecordFailure("good", retry.KindAPI, "hiccup")
	r.RecordSuccess("good")

	// shaky: 2/3 ~ 66% degraded
	r.RecordSuccess("shaky")
	r.RecordSuccess("shaky")
	r.RecordFailure("shaky", retry.KindAPI, "x")

	// broken: trip the breaker
	r.RecordFailure("broken", retry.KindNetwork, "1")
	r.RecordFailure("broken", retry.KindNetwork, "2")
	r.RecordFailure("broken", retry.KindNetwork, "3")

	r.Disable("off")

	available := r.Available()
	if len(available) != 2 {
		t.Fatalf("Available() = %d targets, want 2", len(available))
	}
	if available[0].ID != "better" || available[1].ID != "good" {
		t.Fatalf("Available() order = [%s %s], want [better good]", available[0].ID, available[1].ID)
	}

	ranked := r.Ranked()
	// broken is in cooldown, off is disabled: 3 left
	if len(ranked) != 3 {
		t.Fatalf("Ranked() = %d targets, want 3", len(ranked))
	}
	if ranked[2].ID != "shaky" {
		t.Fatalf("Ranked() last = %s, want shaky (degraded)", ranked[2].ID)
	}
}

func TestCheckRecovery_GradualDecrement(t *testing.T) {
	r := newTestRegistry(t, "a")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	// Build a decent rate first, then trip the breaker.
	for i := 0; i < 8; i++ {
		r.RecordSuccess("a")
	}
	r.RecordFailure("a", retry.KindNetwork, "1")
	r.RecordFailure("a", retry.KindNetwork, "2")
	r.RecordFailure("a", retry.KindNetwork, "3")

	tgt, _ := r.Get("a")
	if tgt.Health != Unhealthy || tgt.ConsecutiveFailures != 3 {
		t.Fatalf("setup: health=%s consecutive=%d", tgt.Health, tgt.ConsecutiveFailures)
	}

	// Before the cooldown elapses nothing changes.
	r.CheckRecovery()
	tgt, _ = r.Get("a")
	if tgt.ConsecutiveFailures != 3 || tgt.NextRetryAfter == nil {
		t.Fatalf("recovery ran early: consecutive=%d", tgt.ConsecutiveFailures)
	}

	// First elapsed pass: clear cooldown, decrement to 2, still unhealthy.
	now = now.Add(31 * time.Minute)
	r.CheckRecovery()
	tgt, _ = r.Get("a")
	if tgt.ConsecutiveFailures != 2 {
		t.Fatalf("consecutive = %d, want 2", tgt.ConsecutiveFailures)
	}
	if tgt.NextRetryAfter != nil {
		t.Fatal("cooldown not cleared")
	}
	if tgt.Health != Unhealthy {
		t.Fatalf("health = %s, want still unhealthy", tgt.Health)
	}

	// Two more passes reach zero; 8/11 = 72.7% promotes to degraded.
	r.CheckRecovery() // No cooldown set anymore, so this is a no-op
	tgt, _ = r.Get("a")
	if tgt.ConsecutiveFailures != 2 {
		t.Fatalf("recovery without cooldown decremented: consecutive=%d", tgt.ConsecutiveFailures)
	}
}

func TestCheckRecovery_PromotesAtZero(t *testing.T) {
	// Threshold 1 so a single failure arms the cooldown and a single
	// elapsed pass brings consecutive_failures back to zero.
	r := NewRegistry(RegistryConfig{Cooldown: 30 * time.Minute, FailureThreshold: 1})
	if err := r.Register("a", "a.example.com", 50, false); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for i := 0; i < 9; i++ {
		r.RecordSuccess("a")
	}
	r.RecordFailure("a", retry.KindNetwork, "blip")

	tgt, _ := r.Get("a")
	if tgt.Health != Unhealthy || tgt.NextRetryAfter == nil {
		t.Fatalf("setup: health=%s cooldown=%v", tgt.Health, tgt.NextRetryAfter)
	}

	now = now.Add(31 * time.Minute)
	r.CheckRecovery()

	tgt, _ = r.Get("a")
	if tgt.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive = %d, want 0", tgt.ConsecutiveFailures)
	}
	// 9/10 = 90% promotes straight back to healthy.
	if tgt.Health != Healthy {
		t.Fatalf("health = %s, want healthy", tgt.Health)
	}
}

func TestDisable_Enable(t *testing.T) {
	r := newTestRegistry(t, "a")
	for i := 0; i < 9; i++ {
		r.RecordSuccess("a")
	}

	r.Disable("a")
	tgt, _ := r.Get("a")
	if tgt.Health != Disabled {
		t.Fatalf("health = %s, want disabled", tgt.Health)
	}
	if len(r.Ranked()) != 0 {
		t.Fatal("disabled target still ranked")
	}

	// Automatic transitions never touch a disabled target.
	r.RecordFailure("a", retry.KindNetwork, "1")
	r.RecordFailure("a", retry.KindNetwork, "2")
	r.RecordFailure("a", retry.KindNetwork, "3")
	tgt, _ = r.Get("a")
	if tgt.Health != Disabled {
		t.Fatalf("health = %s after failures, want still disabled", tgt.Health)
	}
	if tgt.NextRetryAfter != nil {
		t.Fatal("cooldown set on disabled target")
	}

	r.Enable("a")
	tgt, _ = r.Get("a")
	if tgt.Health == Disabled {
		t.Fatal("Enable() did not restore target")
	}
}

func TestRestore_KeepsCatalogIdentity(t *testing.T) {
	r := newTestRegistry(t, "a")

	saved := Target{
		ID:                  "a",
		Domain:              "stale.example.com", // Must not win over catalog
		DomainRating:        99,
		SuccessRate:         50,
		Health:              Degraded,
		ConsecutiveFailures: 1,
		TotalAttempts:       10,
		TotalSuccesses:      5,
	}
	r.Restore(saved)

	tgt, _ := r.Get("a")
	if tgt.Domain != "a.example.com" {
		t.Fatalf("Domain = %s, want catalog value", tgt.Domain)
	}
	if tgt.TotalAttempts != 10 || tgt.Health != Degraded {
		t.Fatalf("restored state lost: attempts=%d health=%s", tgt.TotalAttempts, tgt.Health)
	}
}

func TestLen_CountsNonDisabled(t *testing.T) {
	r := newTestRegistry(t, "a", "b", "c")
	r.Disable("c")
	if got := r.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}
