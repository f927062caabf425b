package campaign

import (
	"context"
	"math/rand"
	"time"

	"linkforge/internal/logging"
	"linkforge/internal/platform"
	"linkforge/internal/provider"
	"linkforge/internal/publisher"
	"linkforge/internal/retry"
)

// RunCycle executes one pass of the campaign's rotation loop: pick a
// platform, generate an article, publish it, update health. At most one
// success per cycle; the loop is bounded so a degraded rotation cannot
// spin forever. The scheduler guarantees cycles of one campaign never
// overlap.
func (o *Orchestrator) RunCycle(ctx context.Context, id string) {
	timer := logging.StartTimer(logging.CategoryRotation, "RunCycle")
	defer timer.Stop()

	o.mu.Lock()
	c, ok := o.campaigns[id]
	if !ok || c.Status != StatusActive {
		o.mu.Unlock()
		logging.RotationDebug("campaign %s: cycle skipped (not active)", id)
		return
	}
	o.mu.Unlock()

	// Effective rotation: healthy platforms, falling back to the full
	// ranked list when none are healthy.
	targets := o.registry.Available()
	if len(targets) == 0 {
		targets = o.registry.Ranked()
	}
	if len(targets) == 0 {
		logging.Rotation("campaign %s: no platforms available, auto-pausing", id)
		if err := o.Pause(id); err != nil {
			logging.Get(logging.CategoryRotation).Error("campaign %s: auto-pause failed: %v", id, err)
		}
		return
	}

	maxAttempts := 2 * len(targets)
	if maxAttempts > o.cfg.AttemptCap {
		maxAttempts = o.cfg.AttemptCap
	}

	succeeded := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		o.mu.Lock()
		idx := c.Progress.RotationIndex % len(targets)
		target := targets[idx]
		c.Progress.RotationIndex = (idx + 1) % len(targets)
		c.CurrentPlatform = target.ID
		o.mu.Unlock()

		// Cooldowns opened mid-cycle still consume an attempt.
		if t, ok := o.registry.Get(target.ID); ok && t.InCooldown(o.now()) {
			logging.RotationDebug("campaign %s: %s in cooldown, skipping", id, target.ID)
			continue
		}

		if o.attemptPublish(ctx, c, target) {
			succeeded = true
			break
		}
	}

	o.mu.Lock()
	c.UpdatedAt = o.now().UTC()
	done := c.Progress.TotalPlatforms > 0 && c.Progress.CompletedPlatforms >= c.Progress.TotalPlatforms
	if done {
		c.Status = StatusCompleted
		now := c.UpdatedAt
		c.CompletedAt = &now
		c.CurrentPlatform = ""
	}
	stillActive := c.Status == StatusActive
	snap := c.Clone()
	o.mu.Unlock()

	persisted := o.persist(snap) == nil

	if done {
		if persisted {
			o.evict(id)
		}
		logging.Update("campaign %s completed: %d links across %d platforms",
			id, snap.LinksBuilt, snap.Progress.CompletedPlatforms)
		logging.AuditLifecycle(logging.AuditCampaignCompleted, id, "every platform filled")
		return
	}
	if !stillActive {
		return
	}

	delay := o.cfg.SuccessDelay
	if !succeeded {
		delay = o.cfg.FailureDelay
	}
	o.scheduler.Schedule(id, delay)
}

// attemptPublish runs one generate-and-publish attempt against a single
// platform and records the outcome in the registry. Returns true on a
// published article.
func (o *Orchestrator) attemptPublish(ctx context.Context, c *Campaign, target platform.Target) bool {
	o.mu.Lock()
	keyword := c.Keywords[rand.Intn(len(c.Keywords))]
	anchor := c.AnchorTexts[rand.Intn(len(c.AnchorTexts))]
	prompt := buildPrompt(c, keyword, anchor, o.cfg.WordCount)
	o.mu.Unlock()

	logging.Rotation("campaign %s: attempting %s (keyword %q)", c.ID, target.ID, keyword)

	result, attempts, err := o.generator.Generate(ctx, prompt, provider.Options{WordCount: o.cfg.WordCount})
	if err != nil {
		logging.Get(logging.CategoryRotation).Warn("campaign %s: generation failed after %d provider attempts: %v",
			c.ID, len(attempts), err)
		o.registry.RecordFailure(target.ID, retry.Classify(err), "content generation failed")
		return false
	}

	title, body := splitArticle(result.Content)
	if title == "" {
		title = keyword
	}

	pub, ok := o.publishers[target.ID]
	if !ok {
		logging.Get(logging.CategoryRotation).Error("campaign %s: no adapter for platform %s", c.ID, target.ID)
		o.registry.RecordFailure(target.ID, retry.KindNotFound, "no publish adapter configured")
		return false
	}

	draft := publisher.Draft{
		Title:      title,
		Body:       body,
		TargetURL:  c.TargetURL,
		AnchorText: anchor,
		Tags:       c.Keywords,
	}
	pubStart := o.now()
	receipt, err := retry.Do(ctx, "publish/"+target.ID, o.cfg.PublishPolicy,
		func(ctx context.Context) (*publisher.Receipt, error) {
			return pub.Publish(ctx, draft)
		})
	if err != nil {
		logging.Get(logging.CategoryRotation).Warn("campaign %s: publish to %s failed: %v", c.ID, target.ID, err)
		logging.AuditPublish(c.ID, target.ID, "", time.Since(pubStart), err)
		o.registry.RecordFailure(target.ID, retry.Classify(err), err.Error())
		return false
	}

	logging.AuditPublish(c.ID, target.ID, receipt.URL, time.Since(pubStart), nil)
	o.registry.RecordSuccess(target.ID)

	o.mu.Lock()
	c.RecordArticle(Article{
		Title:       title,
		URL:         receipt.URL,
		Platform:    target.ID,
		PublishedAt: receipt.PublishedAt,
		WordCount:   result.WordCount(),
		AnchorText:  anchor,
	})
	c.Progress.CompletedPlatforms = len(c.PlatformsUsed)
	if remaining := c.Progress.TotalPlatforms - c.Progress.CompletedPlatforms; remaining > 0 {
		eta := o.now().UTC().Add(time.Duration(remaining) * o.cfg.SuccessDelay)
		c.Progress.EstimatedCompletion = &eta
	} else {
		c.Progress.EstimatedCompletion = nil
	}
	o.mu.Unlock()

	logging.Rotation("campaign %s: published %q to %s (%s)", c.ID, title, target.ID, receipt.URL)
	return true
}
