// Package platform tracks shared health and cooldown state for every
// publish target. One registry instance is shared by all campaigns; it is
// the circuit breaker that steers rotation away from failing platforms and
// gradually lets them back in.
package platform

import (
	"time"

	"linkforge/internal/retry"
)

// HealthStatus is the derived health tier of a publish target.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
	// Disabled is administrative only; never set or cleared by the
	// automatic health transitions, never rotated, never recovered.
	Disabled HealthStatus = "disabled"
)

// rank orders tiers for selection: healthy > degraded > unhealthy.
func (h HealthStatus) rank() int {
	switch h {
	case Healthy:
		return 0
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	default:
		return 3
	}
}

// FailureRecord is one entry in a target's bounded failure history.
type FailureRecord struct {
	Timestamp time.Time  `json:"timestamp"`
	Kind      retry.Kind `json:"kind"`
	Message   string     `json:"message"`
}

// maxFailureHistory bounds the per-target failure log.
const maxFailureHistory = 10

// Target is one publish platform with its rating and health counters.
// Targets are created at startup from the catalog and never deleted,
// only disabled.
type Target struct {
	ID           string `json:"id"`
	Domain       string `json:"domain"`
	DomainRating int    `json:"domain_rating"`

	// Derived metrics. SuccessRate is always
	// total_successes/total_attempts*100 once attempts exist.
	SuccessRate float64      `json:"success_rate"`
	Health      HealthStatus `json:"health_status"`

	ConsecutiveFailures int             `json:"consecutive_failures"`
	FailureHistory      []FailureRecord `json:"failure_history,omitempty"`

	// NextRetryAfter is the cooldown gate; nil means no cooldown.
	NextRetryAfter *time.Time `json:"next_retry_after,omitempty"`

	TotalAttempts  int `json:"total_attempts"`
	TotalSuccesses int `json:"total_successes"`
}

// InCooldown reports whether the target's cooldown window is still open.
func (t *Target) InCooldown(now time.Time) bool {
	return t.NextRetryAfter != nil && now.Before(*t.NextRetryAfter)
}

// recomputeRate refreshes SuccessRate from the raw counters.
func (t *Target) recomputeRate() {
	if t.TotalAttempts == 0 {
		return
	}
	t.SuccessRate = float64(t.TotalSuccesses) / float64(t.TotalAttempts) * 100
}

// healthForRate maps a success rate onto a tier.
func healthForRate(rate float64) HealthStatus {
	switch {
	case rate >= 80:
		return Healthy
	case rate >= 60:
		return Degraded
	default:
		return Unhealthy
	}
}

// clone returns a copy for callers outside the registry lock.
func (t *Target) clone() Target {
	out := *t
	if t.NextRetryAfter != nil {
		at := *t.NextRetryAfter
		out.NextRetryAfter = &at
	}
	out.FailureHistory = append([]FailureRecord(nil), t.FailureHistory...)
	return out
}
