package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies one kind of audit trail entry.
type AuditEventType string

const (
	// Campaign lifecycle events
	AuditCampaignCreated   AuditEventType = "campaign_created"
	AuditCampaignStarted   AuditEventType = "campaign_started"
	AuditCampaignPaused    AuditEventType = "campaign_paused"
	AuditCampaignCompleted AuditEventType = "campaign_completed"
	AuditCampaignFailed    AuditEventType = "campaign_failed"

	// Publish attempt events
	AuditPublishSuccess AuditEventType = "publish_success"
	AuditPublishFailure AuditEventType = "publish_failure"

	// Platform health events
	AuditPlatformCooldown AuditEventType = "platform_cooldown"

	// Backlink re-verification of a published article
	AuditBacklinkChecked AuditEventType = "backlink_checked"
)

// AuditEvent is one line of the append-only audit trail. The trail is the
// permanent record of what was published where; unlike category logs it is
// written even when debug mode is off.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	CampaignID string         `json:"campaign,omitempty"`
	Platform   string         `json:"platform,omitempty"`
	URL        string         `json:"url,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit trail file. Call after Initialize.
func InitAudit() error {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}
	if workspace == "" {
		return fmt.Errorf("logging not initialized")
	}

	dir := filepath.Join(workspace, ".forge", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dir, "audit.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit trail file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// RecordAudit appends one event to the trail. A no-op before InitAudit, so
// library callers never need to care whether a trail is open.
func RecordAudit(ev AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// AuditLifecycle records a campaign lifecycle transition.
func AuditLifecycle(event AuditEventType, campaignID, msg string) {
	RecordAudit(AuditEvent{
		EventType:  event,
		CampaignID: campaignID,
		Success:    true,
		Message:    msg,
	})
}

// AuditBacklink records the outcome of re-checking one published article
// for a live backlink.
func AuditBacklink(campaignID, platformID, url string, found bool, err error) {
	ev := AuditEvent{
		EventType:  AuditBacklinkChecked,
		CampaignID: campaignID,
		Platform:   platformID,
		URL:        url,
		Success:    found,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	RecordAudit(ev)
}

// AuditPublish records one publish attempt outcome.
func AuditPublish(campaignID, platformID, url string, dur time.Duration, err error) {
	ev := AuditEvent{
		EventType:  AuditPublishSuccess,
		CampaignID: campaignID,
		Platform:   platformID,
		URL:        url,
		Success:    true,
		DurationMs: dur.Milliseconds(),
	}
	if err != nil {
		ev.EventType = AuditPublishFailure
		ev.Success = false
		ev.URL = ""
		ev.Error = err.Error()
	}
	RecordAudit(ev)
}
