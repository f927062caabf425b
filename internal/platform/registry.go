package platform

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"linkforge/internal/config"
	"linkforge/internal/logging"
	"linkforge/internal/retry"
)

// RegistryConfig tunes the health model.
type RegistryConfig struct {
	// Cooldown is how long an unhealthy target sits out after crossing
	// the failure threshold (default: 30m).
	Cooldown time.Duration
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker (default: 3).
	FailureThreshold int
}

// Registry holds the shared health state for all publish targets. It is a
// single explicitly-owned instance injected into the orchestrator, not a
// package-level singleton, so tests can substitute their own.
type Registry struct {
	mu               sync.Mutex
	targets          map[string]*Target
	order            []string
	cooldown         time.Duration
	failureThreshold int

	// now is a test hook; production code leaves it as time.Now.
	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Minute
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	return &Registry{
		targets:          make(map[string]*Target),
		cooldown:         cfg.Cooldown,
		failureThreshold: cfg.FailureThreshold,
		now:              time.Now,
	}
}

// Register adds a target. New targets start healthy with a clean slate.
// Registering an existing id is an error; use Restore for reloads.
func (r *Registry) Register(id, domain string, domainRating int, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.targets[id]; exists {
		return fmt.Errorf("platform %s already registered", id)
	}

	health := Healthy
	if disabled {
		health = Disabled
	}
	r.targets[id] = &Target{
		ID:           id,
		Domain:       domain,
		DomainRating: domainRating,
		SuccessRate:  100,
		Health:       health,
	}
	r.order = append(r.order, id)

	logging.Health("registered platform %s (%s, dr=%d, health=%s)", id, domain, domainRating, health)
	return nil
}

// RegisterCatalog registers every entry of a platform catalog.
func (r *Registry) RegisterCatalog(catalog *config.Catalog) error {
	for _, entry := range catalog.Platforms {
		if err := r.Register(entry.ID, entry.Domain, entry.DomainRating, entry.Disabled); err != nil {
			return err
		}
	}
	return nil
}

// RecordSuccess updates health state after a successful publish.
func (r *Registry) RecordSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[id]
	if !ok {
		return
	}

	t.TotalAttempts++
	t.TotalSuccesses++
	t.ConsecutiveFailures = 0
	t.NextRetryAfter = nil
	t.recomputeRate()
	if t.Health != Disabled {
		t.Health = healthForRate(t.SuccessRate)
	}

	logging.Health("platform %s success: rate=%.1f%% health=%s attempts=%d", id, t.SuccessRate, t.Health, t.TotalAttempts)
}

// RecordFailure updates health state after a failed attempt. Crossing the
// consecutive-failure threshold trips the breaker: the target goes
// unhealthy and sits in cooldown until NextRetryAfter.
func (r *Registry) RecordFailure(id string, kind retry.Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[id]
	if !ok {
		return
	}

	now := r.now()
	t.TotalAttempts++
	t.ConsecutiveFailures++
	t.FailureHistory = append(t.FailureHistory, FailureRecord{
		Timestamp: now,
		Kind:      kind,
		Message:   message,
	})
	if len(t.FailureHistory) > maxFailureHistory {
		t.FailureHistory = t.FailureHistory[len(t.FailureHistory)-maxFailureHistory:]
	}
	t.recomputeRate()

	if t.Health == Disabled {
		return
	}

	if t.ConsecutiveFailures >= r.failureThreshold {
		retryAt := now.Add(r.cooldown)
		t.Health = Unhealthy
		t.NextRetryAfter = &retryAt
		logging.Get(logging.CategoryHealth).Warn("platform %s tripped breaker: %d consecutive failures, cooldown until %s",
			id, t.ConsecutiveFailures, retryAt.Format(time.RFC3339))
		logging.RecordAudit(logging.AuditEvent{
			EventType: logging.AuditPlatformCooldown,
			Platform:  id,
			Error:     message,
			Message:   fmt.Sprintf("cooldown until %s", retryAt.Format(time.RFC3339)),
		})
	} else if t.SuccessRate < 80 {
		t.Health = Degraded
		logging.Health("platform %s degraded: rate=%.1f%% consecutive=%d", id, t.SuccessRate, t.ConsecutiveFailures)
	}
}

// Available returns healthy targets not in cooldown, highest success rate
// first. This is the preferred rotation list.
func (r *Registry) Available() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []Target
	for _, id := range r.order {
		t := r.targets[id]
		if t.Health != Healthy || t.InCooldown(now) {
			continue
		}
		out = append(out, t.clone())
	}
	sortTargets(out)
	return out
}

// Ranked returns every non-disabled, non-cooldown target ranked
// healthy > degraded > unhealthy, higher success rate first within a tier.
// This is the fallback rotation list when no target is healthy.
func (r *Registry) Ranked() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []Target
	for _, id := range r.order {
		t := r.targets[id]
		if t.Health == Disabled || t.InCooldown(now) {
			continue
		}
		out = append(out, t.clone())
	}
	sortTargets(out)
	return out
}

func sortTargets(targets []Target) {
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Health.rank() != targets[j].Health.rank() {
			return targets[i].Health.rank() < targets[j].Health.rank()
		}
		return targets[i].SuccessRate > targets[j].SuccessRate
	})
}

// Get returns a copy of one target.
func (r *Registry) Get(id string) (Target, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[id]
	if !ok {
		return Target{}, false
	}
	return t.clone(), true
}

// Snapshot returns copies of all targets in registration order.
func (r *Registry) Snapshot() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Target, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.targets[id].clone())
	}
	return out
}

// Len returns the number of non-disabled targets, the rotation target a
// campaign has to fill to complete.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.targets {
		if t.Health != Disabled {
			n++
		}
	}
	return n
}

// Disable takes a target out of rotation administratively.
func (r *Registry) Disable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.targets[id]; ok {
		t.Health = Disabled
		logging.Health("platform %s disabled", id)
	}
}

// Enable returns an administratively disabled target to rotation. Its
// health tier is recomputed from its success rate.
func (r *Registry) Enable(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.targets[id]; ok && t.Health == Disabled {
		t.Health = healthForRate(t.SuccessRate)
		logging.Health("platform %s enabled (health=%s)", id, t.Health)
	}
}

// Restore replaces a target's counters with previously persisted state.
// Used at startup to rebuild registry state from the store.
func (r *Registry) Restore(saved Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.targets[saved.ID]
	if !ok {
		return
	}
	disabled := t.Health == Disabled

	copied := saved.clone()
	copied.Domain = t.Domain
	copied.DomainRating = t.DomainRating
	*t = copied
	if disabled {
		// Catalog kill switch wins over persisted health.
		t.Health = Disabled
	}
}
