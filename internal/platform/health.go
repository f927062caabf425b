package platform

import (
	"context"
	"time"

	"linkforge/internal/logging"
)

// CheckRecovery runs one recovery pass: for every target whose cooldown has
// elapsed, the cooldown is cleared and consecutive_failures is decremented
// by one. Recovery is gradual, not a reset; a target that failed three
// times needs three clean passes (or a success) before its counter is gone.
// When the counter reaches zero and the success rate allows it, the target
// is promoted back per the health thresholds.
func (r *Registry) CheckRecovery() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, id := range r.order {
		t := r.targets[id]
		if t.Health == Disabled {
			continue
		}
		if t.NextRetryAfter == nil || now.Before(*t.NextRetryAfter) {
			continue
		}

		t.NextRetryAfter = nil
		if t.ConsecutiveFailures > 0 {
			t.ConsecutiveFailures--
		}
		logging.Health("platform %s cooldown elapsed: consecutive=%d rate=%.1f%%", id, t.ConsecutiveFailures, t.SuccessRate)

		if t.ConsecutiveFailures == 0 && t.SuccessRate >= 60 {
			t.Health = healthForRate(t.SuccessRate)
			logging.Health("platform %s recovered to %s", id, t.Health)
		}
	}
}

// RunHealthLoop runs CheckRecovery every interval until ctx is cancelled.
func (r *Registry) RunHealthLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	logging.Health("health check loop started (interval=%v)", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Health("health check loop stopped")
			return
		case <-ticker.C:
			r.CheckRecovery()
		}
	}
}
