package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkforge/internal/logging"
	"linkforge/internal/platform"
	"linkforge/internal/publisher"
	"linkforge/internal/retry"
)

// Config tunes the orchestrator's rotation loop.
type Config struct {
	// SuccessDelay schedules the next cycle after a cycle with at least
	// one successful attempt (default: 30s).
	SuccessDelay time.Duration
	// FailureDelay schedules the next cycle after a cycle where every
	// attempt failed, backing off harder on likely systemic outages
	// (default: 5m).
	FailureDelay time.Duration
	// AttemptCap bounds the attempts of one cycle regardless of rotation
	// size (default: 10).
	AttemptCap int
	// WordCount is the target article length passed to providers
	// (default: 600).
	WordCount int
	// PublishPolicy is the retry budget wrapped around each platform
	// publish call.
	PublishPolicy retry.Policy
}

// DefaultConfig returns the production rotation settings.
func DefaultConfig() Config {
	return Config{
		SuccessDelay:  30 * time.Second,
		FailureDelay:  5 * time.Minute,
		AttemptCap:    10,
		WordCount:     600,
		PublishPolicy: retry.DefaultPolicy(),
	}
}

func (c Config) withDefaults() Config {
	if c.SuccessDelay <= 0 {
		c.SuccessDelay = 30 * time.Second
	}
	if c.FailureDelay <= 0 {
		c.FailureDelay = 5 * time.Minute
	}
	if c.AttemptCap <= 0 {
		c.AttemptCap = 10
	}
	if c.WordCount <= 0 {
		c.WordCount = 600
	}
	return c
}

// Orchestrator owns every campaign's lifecycle and rotation loop. One
// registry and one store are shared by all campaigns; each active
// campaign owns exactly one delayed continuation in the scheduler, so
// cycles of the same campaign never overlap.
type Orchestrator struct {
	store      Store
	registry   *platform.Registry
	generator  Generator
	publishers map[string]publisher.Publisher
	cfg        Config
	scheduler  *Scheduler

	cycleCtx context.Context

	mu        sync.Mutex
	campaigns map[string]*Campaign

	// test hooks
	now   func() time.Time
	newID func() string
}

// New wires an orchestrator. The publishers map is keyed by platform id
// and must cover every platform the registry can select.
func New(store Store, registry *platform.Registry, generator Generator, publishers map[string]publisher.Publisher, cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		registry:   registry,
		generator:  generator,
		publishers: publishers,
		cfg:        cfg.withDefaults(),
		cycleCtx:   context.Background(),
		campaigns:  make(map[string]*Campaign),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	o.scheduler = NewScheduler(func(id string) {
		o.RunCycle(o.cycleCtx, id)
	})
	return o
}

// SetCycleContext binds the context scheduled cycles run under. The
// daemon passes its shutdown context so in-flight network calls stop on
// exit.
func (o *Orchestrator) SetCycleContext(ctx context.Context) {
	o.cycleCtx = ctx
}

// Scheduler exposes the continuation scheduler for status reporting.
func (o *Orchestrator) Scheduler() *Scheduler { return o.scheduler }

// Rebuild loads persisted platform health and all non-terminal campaigns
// into memory, and re-arms the rotation for campaigns that were active
// when the process stopped.
func (o *Orchestrator) Rebuild() error {
	timer := logging.StartTimer(logging.CategoryBoot, "Rebuild")
	defer timer.Stop()

	targets, err := o.store.LoadPlatforms()
	if err != nil {
		return err
	}
	for _, t := range targets {
		o.registry.Restore(t)
	}

	list, err := o.store.ListCampaigns()
	if err != nil {
		return err
	}

	o.mu.Lock()
	restored, rearmed := 0, 0
	for _, c := range list {
		if c.Status.Terminal() {
			continue
		}
		o.campaigns[c.ID] = c
		restored++
		if c.Status == StatusActive {
			o.scheduler.Schedule(c.ID, 0)
			rearmed++
		}
	}
	o.mu.Unlock()

	logging.Boot("rebuilt %d campaigns from store (%d active re-armed, %d platforms restored)",
		restored, rearmed, len(targets))
	return nil
}

// Create validates the input and persists a new draft campaign. Nothing
// is written when validation or the store fails.
func (o *Orchestrator) Create(owner string, keywords, anchors []string, targetURL string) (*Campaign, error) {
	if err := validateInput(owner, keywords, anchors, targetURL); err != nil {
		logging.Get(logging.CategoryCampaignCreation).Warn("rejected campaign from %s: %v", owner, err)
		return nil, err
	}

	now := o.now().UTC()
	c := &Campaign{
		ID:          o.newID(),
		Owner:       owner,
		Keywords:    append([]string(nil), keywords...),
		AnchorTexts: append([]string(nil), anchors...),
		TargetURL:   targetURL,
		Status:      StatusDraft,
		Progress: Progress{
			TotalPlatforms: o.registry.Len(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.SaveCampaign(c); err != nil {
		logging.Get(logging.CategoryCampaignCreation).Error("failed to persist campaign %s: %v", c.ID, err)
		return nil, err
	}

	o.mu.Lock()
	o.campaigns[c.ID] = c
	out := c.Clone()
	o.mu.Unlock()

	logging.Creation("campaign %s created by %s (%d keywords, %d anchors, %d platforms)",
		c.ID, owner, len(keywords), len(anchors), c.Progress.TotalPlatforms)
	logging.AuditLifecycle(logging.AuditCampaignCreated, c.ID, "created by "+owner)
	return out, nil
}

// Start activates a draft or paused campaign and kicks off its first
// cycle. Starting an active or terminal campaign is an InvalidStateError.
func (o *Orchestrator) Start(id string) error {
	o.mu.Lock()
	c, err := o.lookupLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if err := c.ApplyStart(o.now().UTC()); err != nil {
		o.mu.Unlock()
		return err
	}
	snap := c.Clone()
	o.mu.Unlock()

	o.persist(snap)
	logging.Update("campaign %s started", id)
	logging.AuditLifecycle(logging.AuditCampaignStarted, id, "")
	o.scheduler.Schedule(id, 0)
	return nil
}

// Pause stops the rotation: the pending continuation is cancelled and the
// cursor is preserved for resume. Pausing an already-paused campaign is a
// no-op; a cycle already in flight may still apply its result.
func (o *Orchestrator) Pause(id string) error {
	o.mu.Lock()
	c, err := o.lookupLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	changed, err := c.ApplyPause(o.now().UTC())
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if !changed {
		o.mu.Unlock()
		return nil
	}
	snap := c.Clone()
	o.mu.Unlock()

	o.scheduler.Cancel(id)
	o.persist(snap)
	logging.Update("campaign %s paused", id)
	logging.AuditLifecycle(logging.AuditCampaignPaused, id, "")
	return nil
}

// Fail marks an active or paused campaign failed. Terminal; there is no
// way back.
func (o *Orchestrator) Fail(id string) error {
	o.mu.Lock()
	c, err := o.lookupLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if c.Status.Terminal() {
		o.mu.Unlock()
		return &InvalidStateError{CampaignID: id, Status: c.Status, Op: "fail"}
	}

	c.Status = StatusFailed
	now := o.now().UTC()
	c.UpdatedAt = now
	c.CompletedAt = &now
	c.CurrentPlatform = ""
	snap := c.Clone()
	o.mu.Unlock()

	o.scheduler.Cancel(id)
	if o.persist(snap) == nil {
		o.evict(id)
	}
	logging.Update("campaign %s marked failed", id)
	logging.AuditLifecycle(logging.AuditCampaignFailed, id, "")
	return nil
}

// Get returns a copy of one campaign, falling back to the store for
// terminal campaigns evicted from memory.
func (o *Orchestrator) Get(id string) (*Campaign, error) {
	o.mu.Lock()
	if c, ok := o.campaigns[id]; ok {
		out := c.Clone()
		o.mu.Unlock()
		return out, nil
	}
	o.mu.Unlock()
	return o.store.GetCampaign(id)
}

// List returns every known campaign from the store, oldest first.
func (o *Orchestrator) List() ([]*Campaign, error) {
	return o.store.ListCampaigns()
}

// Close stops the scheduler and waits for any running cycle.
func (o *Orchestrator) Close() {
	o.scheduler.Stop()
}

// lookupLocked finds a campaign in memory, loading it from the store on a
// miss. Terminal campaigns are not cached; they stay evicted. Caller
// holds o.mu.
func (o *Orchestrator) lookupLocked(id string) (*Campaign, error) {
	if c, ok := o.campaigns[id]; ok {
		return c, nil
	}
	c, err := o.store.GetCampaign(id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Terminal() {
		o.campaigns[id] = c
	}
	return c, nil
}

// evict drops a terminal campaign from memory. Callers only evict after
// the final state reached the store; a failed save keeps the campaign
// resident so memory stays authoritative.
func (o *Orchestrator) evict(id string) {
	o.mu.Lock()
	delete(o.campaigns, id)
	o.mu.Unlock()
}

// persist saves a campaign snapshot and the registry state. Callers pass
// a Clone taken under o.mu, never the live struct. Persistence failures
// during execution are logged, never fatal: in-memory state stays
// authoritative until the next successful save.
func (o *Orchestrator) persist(snap *Campaign) error {
	saveErr := o.store.SaveCampaign(snap)
	if saveErr != nil {
		logging.Get(logging.CategoryCampaignUpdate).Error("failed to persist campaign %s: %v", snap.ID, saveErr)
	}
	if err := o.store.SavePlatforms(o.registry.Snapshot()); err != nil {
		logging.Get(logging.CategoryCampaignUpdate).Error("failed to persist platform health: %v", err)
	}
	return saveErr
}
