package campaign

import (
	"context"

	"linkforge/internal/platform"
	"linkforge/internal/provider"
)

// Store persists campaigns and platform health. The SQLite store backs
// the daemon; tests use the in-memory implementation. The store is the
// source of truth across restarts; the orchestrator's map is a cache
// rebuilt from it at startup.
type Store interface {
	SaveCampaign(c *Campaign) error
	GetCampaign(id string) (*Campaign, error)
	ListCampaigns() ([]*Campaign, error)
	SavePlatforms(targets []platform.Target) error
	LoadPlatforms() ([]platform.Target, error)
	Close() error
}

// Generator produces article content. Satisfied by provider.Chain.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts provider.Options) (*provider.Result, []provider.Attempt, error)
}
