package store

import (
	"sort"
	"sync"

	"linkforge/internal/campaign"
	"linkforge/internal/platform"
)

// MemoryStore is an in-memory store for tests and dry runs. It copies on
// the way in and out so callers cannot alias its state.
type MemoryStore struct {
	mu        sync.Mutex
	campaigns map[string]*campaign.Campaign
	targets   map[string]platform.Target

	// FailSaves makes every save return this error when set.
	FailSaves error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]*campaign.Campaign),
		targets:   make(map[string]platform.Target),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveCampaign(c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return &PersistenceError{Op: "SaveCampaign", Err: s.FailSaves}
	}
	cp := *c
	cp.Keywords = append([]string(nil), c.Keywords...)
	cp.AnchorTexts = append([]string(nil), c.AnchorTexts...)
	cp.PlatformsUsed = append([]string(nil), c.PlatformsUsed...)
	cp.Articles = append([]campaign.Article(nil), c.Articles...)
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCampaign(id string) (*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Keywords = append([]string(nil), c.Keywords...)
	cp.AnchorTexts = append([]string(nil), c.AnchorTexts...)
	cp.PlatformsUsed = append([]string(nil), c.PlatformsUsed...)
	cp.Articles = append([]campaign.Article(nil), c.Articles...)
	return &cp, nil
}

func (s *MemoryStore) ListCampaigns() ([]*campaign.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*campaign.Campaign, 0, len(s.campaigns))
	for id := range s.campaigns {
		c := *s.campaigns[id]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SavePlatform(t platform.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return &PersistenceError{Op: "SavePlatform", Err: s.FailSaves}
	}
	s.targets[t.ID] = t
	return nil
}

func (s *MemoryStore) SavePlatforms(targets []platform.Target) error {
	for _, t := range targets {
		if err := s.SavePlatform(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) LoadPlatforms() ([]platform.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]platform.Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
