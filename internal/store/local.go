package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"linkforge/internal/campaign"
	"linkforge/internal/logging"
	"linkforge/internal/platform"
)

// LocalStore is the SQLite-backed store. One row per campaign with the
// variable-length fields (keywords, articles, progress) as JSON columns,
// one row per platform target.
type LocalStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	status TEXT NOT NULL,
	target_url TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	anchor_texts TEXT NOT NULL DEFAULT '[]',
	links_built INTEGER NOT NULL DEFAULT 0,
	platforms_used TEXT NOT NULL DEFAULT '[]',
	articles TEXT NOT NULL DEFAULT '[]',
	progress TEXT NOT NULL DEFAULT '{}',
	current_platform TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);

CREATE TABLE IF NOT EXISTS platform_targets (
	id TEXT PRIMARY KEY,
	domain TEXT NOT NULL,
	domain_rating INTEGER NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 100,
	health TEXT NOT NULL DEFAULT 'healthy',
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	failure_history TEXT NOT NULL DEFAULT '[]',
	next_retry_after TEXT,
	total_attempts INTEGER NOT NULL DEFAULT 0,
	total_successes INTEGER NOT NULL DEFAULT 0
);
`

// NewLocalStore opens (or creates) the SQLite database at path.
func NewLocalStore(path string) (*LocalStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("store opened at %s", path)
	return s, nil
}

func (s *LocalStore) initialize() error {
	if _, err := s.db.Exec(schema); err != nil {
		return &PersistenceError{Op: "initialize", Err: err}
	}
	return RunMigrations(s.db)
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// SaveCampaign upserts one campaign row.
func (s *LocalStore) SaveCampaign(c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keywords, err := json.Marshal(c.Keywords)
	if err != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: err}
	}
	anchors, err := json.Marshal(c.AnchorTexts)
	if err != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: err}
	}
	used, err := json.Marshal(c.PlatformsUsed)
	if err != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: err}
	}
	articles, err := json.Marshal(c.Articles)
	if err != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: err}
	}
	progress, err := json.Marshal(c.Progress)
	if err != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO campaigns
			(id, owner, status, target_url, keywords, anchor_texts, links_built,
			 platforms_used, articles, progress, current_platform,
			 created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			links_built = excluded.links_built,
			platforms_used = excluded.platforms_used,
			articles = excluded.articles,
			progress = excluded.progress,
			current_platform = excluded.current_platform,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`,
		c.ID, c.Owner, string(c.Status), c.TargetURL,
		string(keywords), string(anchors), c.LinksBuilt,
		string(used), string(articles), string(progress), c.CurrentPlatform,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), formatTimePtr(c.CompletedAt))
	if err != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: err}
	}
	logging.StoreDebug("campaign %s saved (status=%s, links=%d)", c.ID, c.Status, c.LinksBuilt)
	return nil
}

// GetCampaign loads one campaign; ErrNotFound when the id has no row.
func (s *LocalStore) GetCampaign(id string) (*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, owner, status, target_url, keywords, anchor_texts, links_built,
		       platforms_used, articles, progress, current_platform,
		       created_at, updated_at, completed_at
		FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "GetCampaign", Err: err}
	}
	return c, nil
}

// ListCampaigns returns every campaign, oldest first.
func (s *LocalStore) ListCampaigns() ([]*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, owner, status, target_url, keywords, anchor_texts, links_built,
		       platforms_used, articles, progress, current_platform,
		       created_at, updated_at, completed_at
		FROM campaigns ORDER BY created_at ASC`)
	if err != nil {
		return nil, &PersistenceError{Op: "ListCampaigns", Err: err}
	}
	defer rows.Close()

	var out []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "ListCampaigns", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListByStatus returns campaigns in one status, oldest first.
func (s *LocalStore) ListByStatus(status campaign.Status) ([]*campaign.Campaign, error) {
	return s.listWhere("status = ?", string(status))
}

// ListByOwner returns one owner's campaigns, oldest first.
func (s *LocalStore) ListByOwner(owner string) ([]*campaign.Campaign, error) {
	return s.listWhere("owner = ?", owner)
}

func (s *LocalStore) listWhere(cond string, arg any) ([]*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, owner, status, target_url, keywords, anchor_texts, links_built,
		       platforms_used, articles, progress, current_platform,
		       created_at, updated_at, completed_at
		FROM campaigns WHERE `+cond+` ORDER BY created_at ASC`, arg)
	if err != nil {
		return nil, &PersistenceError{Op: "ListCampaigns", Err: err}
	}
	defer rows.Close()

	var out []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "ListCampaigns", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var status, keywords, anchors, used, articles, progress string
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := row.Scan(&c.ID, &c.Owner, &status, &c.TargetURL,
		&keywords, &anchors, &c.LinksBuilt,
		&used, &articles, &progress, &c.CurrentPlatform,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	c.Status = campaign.Status(status)
	if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
		return nil, fmt.Errorf("corrupt keywords column: %w", err)
	}
	if err := json.Unmarshal([]byte(anchors), &c.AnchorTexts); err != nil {
		return nil, fmt.Errorf("corrupt anchor_texts column: %w", err)
	}
	if err := json.Unmarshal([]byte(used), &c.PlatformsUsed); err != nil {
		return nil, fmt.Errorf("corrupt platforms_used column: %w", err)
	}
	if err := json.Unmarshal([]byte(articles), &c.Articles); err != nil {
		return nil, fmt.Errorf("corrupt articles column: %w", err)
	}
	if err := json.Unmarshal([]byte(progress), &c.Progress); err != nil {
		return nil, fmt.Errorf("corrupt progress column: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		at, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		c.CompletedAt = &at
	}
	return &c, nil
}

// SavePlatform upserts one platform target's health state.
func (s *LocalStore) SavePlatform(t platform.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := json.Marshal(t.FailureHistory)
	if err != nil {
		return &PersistenceError{Op: "SavePlatform", Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO platform_targets
			(id, domain, domain_rating, success_rate, health, consecutive_failures,
			 failure_history, next_retry_after, total_attempts, total_successes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success_rate = excluded.success_rate,
			health = excluded.health,
			consecutive_failures = excluded.consecutive_failures,
			failure_history = excluded.failure_history,
			next_retry_after = excluded.next_retry_after,
			total_attempts = excluded.total_attempts,
			total_successes = excluded.total_successes`,
		t.ID, t.Domain, t.DomainRating, t.SuccessRate, string(t.Health),
		t.ConsecutiveFailures, string(history), formatTimePtr(t.NextRetryAfter),
		t.TotalAttempts, t.TotalSuccesses)
	if err != nil {
		return &PersistenceError{Op: "SavePlatform", Err: err}
	}
	return nil
}

// SavePlatforms upserts a whole registry snapshot in one transaction.
func (s *LocalStore) SavePlatforms(targets []platform.Target) error {
	for _, t := range targets {
		if err := s.SavePlatform(t); err != nil {
			return err
		}
	}
	return nil
}

// LoadPlatforms returns every persisted platform target.
func (s *LocalStore) LoadPlatforms() ([]platform.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, domain, domain_rating, success_rate, health, consecutive_failures,
		       failure_history, next_retry_after, total_attempts, total_successes
		FROM platform_targets`)
	if err != nil {
		return nil, &PersistenceError{Op: "LoadPlatforms", Err: err}
	}
	defer rows.Close()

	var out []platform.Target
	for rows.Next() {
		var t platform.Target
		var health, history string
		var nextRetry sql.NullString
		err := rows.Scan(&t.ID, &t.Domain, &t.DomainRating, &t.SuccessRate, &health,
			&t.ConsecutiveFailures, &history, &nextRetry, &t.TotalAttempts, &t.TotalSuccesses)
		if err != nil {
			return nil, &PersistenceError{Op: "LoadPlatforms", Err: err}
		}
		t.Health = platform.HealthStatus(health)
		if err := json.Unmarshal([]byte(history), &t.FailureHistory); err != nil {
			return nil, &PersistenceError{Op: "LoadPlatforms", Err: fmt.Errorf("corrupt failure_history column: %w", err)}
		}
		if nextRetry.Valid {
			at, err := parseTime(nextRetry.String)
			if err != nil {
				return nil, &PersistenceError{Op: "LoadPlatforms", Err: err}
			}
			t.NextRetryAfter = &at
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Timestamps are stored as RFC 3339 text so rows stay portable across
// sqlite drivers.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t, nil
}
