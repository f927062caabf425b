package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"linkforge/internal/retry"
)

// Static is an in-memory adapter for tests and dry runs. It records every
// draft it receives and can be scripted to fail.
type Static struct {
	platform string
	domain   string

	mu        sync.Mutex
	seq       int
	published []Draft
	failWith  error
}

// NewStatic creates a dry-run adapter.
func NewStatic(id, domain string) *Static {
	if domain == "" {
		domain = "static.local"
	}
	return &Static{platform: id, domain: domain}
}

func (s *Static) Platform() string { return s.platform }

// FailWith makes every subsequent Publish call return err. Pass nil to
// restore success.
func (s *Static) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Published returns a copy of everything published so far.
func (s *Static) Published() []Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Draft, len(s.published))
	copy(out, s.published)
	return out
}

// Publish records the draft and returns a synthetic URL.
func (s *Static) Publish(ctx context.Context, d Draft) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PlatformError{Platform: s.platform, Kind: retry.KindTimeout, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.seq++
	s.published = append(s.published, d)
	url := fmt.Sprintf("https://%s/articles/%d", s.domain, s.seq)
	return &Receipt{URL: url, PublishedAt: time.Now().UTC()}, nil
}
