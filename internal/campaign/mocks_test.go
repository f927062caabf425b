package campaign

import (
	"context"
	"errors"
	"sort"
	"sync"

	"linkforge/internal/platform"
	"linkforge/internal/provider"
)

// memStore is the test double for Store. The real implementations live in
// internal/store, which imports this package.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*Campaign
	targets   map[string]platform.Target
	failSaves error
	saves     int
}

var errMockNotFound = errors.New("campaign not found")

func newMemStore() *memStore {
	return &memStore{
		campaigns: make(map[string]*Campaign),
		targets:   make(map[string]platform.Target),
	}
}

func (s *memStore) SaveCampaign(c *Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failSaves != nil {
		return s.failSaves
	}
	s.campaigns[c.ID] = c.Clone()
	return nil
}

func (s *memStore) GetCampaign(id string) (*Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, errMockNotFound
	}
	return c.Clone(), nil
}

func (s *memStore) ListCampaigns() ([]*Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SavePlatforms(targets []platform.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves != nil {
		return s.failSaves
	}
	for _, t := range targets {
		s.targets[t.ID] = t
	}
	return nil
}

func (s *memStore) LoadPlatforms() ([]platform.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]platform.Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t)
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

// stubGenerator is the test double for the provider chain.
type stubGenerator struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, opts provider.Options) (*provider.Result, []provider.Attempt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, []provider.Attempt{{Provider: "stub", Success: false, Err: g.err.Error()}}, g.err
	}
	content := g.content
	if content == "" {
		content = "Generated Title\n\nGenerated body with enough words to publish."
	}
	return &provider.Result{Provider: "stub", Content: content},
		[]provider.Attempt{{Provider: "stub", Success: true}}, nil
}
