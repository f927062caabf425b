// Package campaign owns the campaign lifecycle and the platform-rotation
// loop. A campaign publishes generated articles across third-party
// platforms, one success per cycle, until every platform in the rotation
// has been filled.
package campaign

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status is the lifecycle state of a campaign.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Article is one entry in a campaign's ordered published-article log.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Platform    string    `json:"platform"`
	PublishedAt time.Time `json:"published_at"`
	WordCount   int       `json:"word_count"`
	AnchorText  string    `json:"anchor_text_used"`
}

// Progress tracks how far a campaign's rotation has advanced.
type Progress struct {
	TotalPlatforms      int        `json:"total_platforms"`
	CompletedPlatforms  int        `json:"completed_platforms"`
	RotationIndex       int        `json:"rotation_index"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
}

// Campaign is one link-building campaign. It is exclusively owned by the
// orchestrator during execution; links_built always equals the length of
// the article log.
type Campaign struct {
	ID          string   `json:"id"`
	Owner       string   `json:"owner"`
	Keywords    []string `json:"keywords"`
	AnchorTexts []string `json:"anchor_texts"`
	TargetURL   string   `json:"target_url"`

	Status     Status `json:"status"`
	LinksBuilt int    `json:"links_built"`

	// PlatformsUsed has set semantics; use MarkPlatformUsed.
	PlatformsUsed []string  `json:"platforms_used,omitempty"`
	Articles      []Article `json:"articles,omitempty"`

	Progress        Progress `json:"execution_progress"`
	CurrentPlatform string   `json:"current_platform,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ApplyStart transitions the campaign to active. Valid from draft and
// paused only; the first start stamps started_at, a resume keeps it.
func (c *Campaign) ApplyStart(now time.Time) error {
	if c.Status != StatusDraft && c.Status != StatusPaused {
		return &InvalidStateError{CampaignID: c.ID, Status: c.Status, Op: "start"}
	}
	c.Status = StatusActive
	c.UpdatedAt = now
	if c.Progress.StartedAt == nil {
		at := now
		c.Progress.StartedAt = &at
	}
	return nil
}

// ApplyPause transitions an active campaign to paused, preserving the
// rotation cursor. Pausing an already-paused campaign is a no-op; the
// returned bool reports whether anything changed.
func (c *Campaign) ApplyPause(now time.Time) (bool, error) {
	if c.Status == StatusPaused {
		return false, nil
	}
	if c.Status != StatusActive {
		return false, &InvalidStateError{CampaignID: c.ID, Status: c.Status, Op: "pause"}
	}
	c.Status = StatusPaused
	c.UpdatedAt = now
	return true, nil
}

// Clone returns a deep copy for callers outside the orchestrator.
func (c *Campaign) Clone() *Campaign {
	out := *c
	out.Keywords = append([]string(nil), c.Keywords...)
	out.AnchorTexts = append([]string(nil), c.AnchorTexts...)
	out.PlatformsUsed = append([]string(nil), c.PlatformsUsed...)
	out.Articles = append([]Article(nil), c.Articles...)
	if c.Progress.StartedAt != nil {
		at := *c.Progress.StartedAt
		out.Progress.StartedAt = &at
	}
	if c.Progress.EstimatedCompletion != nil {
		at := *c.Progress.EstimatedCompletion
		out.Progress.EstimatedCompletion = &at
	}
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// RecordArticle appends to the article log and keeps the links_built
// counter in lockstep with it.
func (c *Campaign) RecordArticle(a Article) {
	c.Articles = append(c.Articles, a)
	c.LinksBuilt = len(c.Articles)
	c.MarkPlatformUsed(a.Platform)
}

// MarkPlatformUsed adds a platform to the used set.
func (c *Campaign) MarkPlatformUsed(id string) {
	for _, p := range c.PlatformsUsed {
		if p == id {
			return
		}
	}
	c.PlatformsUsed = append(c.PlatformsUsed, id)
}

// UsedPlatform reports whether the campaign already built a link on the
// given platform.
func (c *Campaign) UsedPlatform(id string) bool {
	for _, p := range c.PlatformsUsed {
		if p == id {
			return true
		}
	}
	return false
}

// ValidationError reports malformed campaign input. It surfaces from
// Create before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports a lifecycle operation applied in the wrong
// status (starting an already-active campaign, resuming a completed one).
type InvalidStateError struct {
	CampaignID string
	Status     Status
	Op         string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s campaign %s in status %s", e.Op, e.CampaignID, e.Status)
}

// validateInput checks campaign creation input.
func validateInput(owner string, keywords, anchors []string, targetURL string) error {
	if strings.TrimSpace(owner) == "" {
		return &ValidationError{Field: "owner", Reason: "required"}
	}
	if len(keywords) == 0 {
		return &ValidationError{Field: "keywords", Reason: "at least one keyword required"}
	}
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			return &ValidationError{Field: "keywords", Reason: "empty keyword"}
		}
	}
	if len(anchors) == 0 {
		return &ValidationError{Field: "anchor_texts", Reason: "at least one anchor text required"}
	}
	for _, a := range anchors {
		if strings.TrimSpace(a) == "" {
			return &ValidationError{Field: "anchor_texts", Reason: "empty anchor text"}
		}
	}
	u, err := url.Parse(targetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Field: "target_url", Reason: "must be an absolute URL"}
	}
	return nil
}
