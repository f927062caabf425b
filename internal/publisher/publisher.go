// Package publisher contains the platform adapters: one Publisher per
// platform kind, all speaking JSON APIs. Adapters translate HTTP failures
// into classified PlatformErrors so the retry layer and the registry make
// consistent health decisions.
package publisher

import (
	"context"
	"fmt"
	"time"

	"linkforge/internal/config"
	"linkforge/internal/retry"
)

// Draft is one article ready to publish. Body is markdown; adapters that
// need another format convert it themselves.
type Draft struct {
	Title      string
	Body       string
	TargetURL  string
	AnchorText string
	Tags       []string
}

// Receipt records where a draft landed.
type Receipt struct {
	URL         string
	PublishedAt time.Time
}

// Publisher is one platform adapter.
type Publisher interface {
	// Platform returns the catalog ID this adapter publishes to.
	Platform() string
	Publish(ctx context.Context, d Draft) (*Receipt, error)
}

// PlatformError is a classified publish failure.
type PlatformError struct {
	Platform   string
	Kind       retry.Kind
	StatusCode int
	Err        error
}

func (e *PlatformError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("platform %s: %s (HTTP %d): %v", e.Platform, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("platform %s: %s: %v", e.Platform, e.Kind, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// RetryKind implements retry.Classified.
func (e *PlatformError) RetryKind() retry.Kind { return e.Kind }

// kindForStatus maps an HTTP status to a retry kind. Shared by every
// HTTP adapter.
func kindForStatus(status int) retry.Kind {
	switch {
	case status == 401 || status == 403:
		return retry.KindAuth
	case status == 402:
		return retry.KindQuota
	case status == 404:
		return retry.KindNotFound
	case status == 422:
		return retry.KindContent
	case status == 429:
		return retry.KindRateLimit
	case status >= 500:
		return retry.KindAPI
	default:
		return retry.KindUnknown
	}
}

// New builds the adapter for one catalog entry. Unknown adapter names are
// a configuration error, not a runtime failure.
func New(entry config.CatalogEntry) (Publisher, error) {
	switch entry.Adapter {
	case "telegraph":
		return NewTelegraph(entry), nil
	case "devto":
		return NewDevTo(entry), nil
	case "hashnode":
		return NewHashnode(entry), nil
	case "rest":
		return NewREST(entry), nil
	case "static":
		return NewStatic(entry.ID, entry.Domain), nil
	default:
		return nil, fmt.Errorf("platform %s: unknown adapter %q", entry.ID, entry.Adapter)
	}
}
