package main

import (
	"fmt"
	"path/filepath"

	"linkforge/internal/campaign"
	"linkforge/internal/config"
	"linkforge/internal/platform"
	"linkforge/internal/provider"
	"linkforge/internal/publisher"
	"linkforge/internal/retry"
	"linkforge/internal/store"
)

// stack is the wired application: config, store, registry, and the
// publish adapters from the platform catalog.
type stack struct {
	ws       string
	cfg      *config.Config
	catalog  *config.Catalog
	store    *store.LocalStore
	registry *platform.Registry
	pubs     map[string]publisher.Publisher
}

// openStack loads configuration and wires every component up to (but
// not including) the orchestrator.
func openStack() (*stack, error) {
	ws := resolveWorkspace()

	cfg, err := config.Load(config.DefaultPath(ws))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	catalog, err := config.LoadCatalog(wsPath(ws, cfg.Platforms.CatalogPath))
	if err != nil {
		return nil, err
	}

	st, err := store.NewLocalStore(wsPath(ws, cfg.Store.DatabasePath))
	if err != nil {
		return nil, err
	}

	registry := platform.NewRegistry(platform.RegistryConfig{
		Cooldown:         cfg.GetCooldown(),
		FailureThreshold: cfg.Health.FailureThreshold,
	})
	if err := registry.RegisterCatalog(catalog); err != nil {
		st.Close()
		return nil, err
	}

	pubs := make(map[string]publisher.Publisher, len(catalog.Platforms))
	for _, entry := range catalog.Platforms {
		pub, err := publisher.New(entry)
		if err != nil {
			st.Close()
			return nil, err
		}
		pubs[entry.ID] = pub
	}

	return &stack{
		ws:       ws,
		cfg:      cfg,
		catalog:  catalog,
		store:    st,
		registry: registry,
		pubs:     pubs,
	}, nil
}

func (s *stack) close() {
	if err := s.store.Close(); err != nil {
		logger.Warn(fmt.Sprintf("store close: %v", err))
	}
}

// restoreHealth loads persisted platform counters into the registry.
func (s *stack) restoreHealth() error {
	targets, err := s.store.LoadPlatforms()
	if err != nil {
		return err
	}
	for _, t := range targets {
		s.registry.Restore(t)
	}
	return nil
}

// buildChain wires the provider chain from the configured credentials,
// with the template provider as the out-of-band fallback.
func buildChain(cfg *config.Config) *provider.Chain {
	providers := []provider.Provider{
		provider.NewGeminiProvider(cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.Model),
		provider.NewOpenAIProviderWithConfig(provider.OpenAIConfig{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			Model:   cfg.Providers.OpenAI.Model,
			Timeout: cfg.Providers.OpenAI.GetTimeout(),
		}),
		provider.NewAnthropicProviderWithConfig(provider.AnthropicConfig{
			APIKey:  cfg.Providers.Anthropic.APIKey,
			BaseURL: cfg.Providers.Anthropic.BaseURL,
			Model:   cfg.Providers.Anthropic.Model,
			Timeout: cfg.Providers.Anthropic.GetTimeout(),
		}),
	}
	return provider.NewChain(providers, provider.NewTemplateProvider(), provider.ChainConfig{
		Default: cfg.Providers.Default,
		Policy:  provider.DefaultChainPolicy(),
	})
}

// orchestratorConfig maps file configuration onto the rotation loop.
func orchestratorConfig(cfg *config.Config) campaign.Config {
	return campaign.Config{
		SuccessDelay: cfg.GetSuccessDelay(),
		FailureDelay: cfg.GetFailureDelay(),
		AttemptCap:   cfg.Rotation.MaxAttemptsPerCycle,
		PublishPolicy: retry.Policy{
			MaxRetries:     cfg.Retry.MaxRetries,
			BaseDelay:      cfg.GetRetryBaseDelay(),
			MaxDelay:       cfg.GetRetryMaxDelay(),
			AttemptTimeout: cfg.GetRetryAttemptTimeout(),
			JitterFactor:   cfg.Retry.JitterFactor,
		},
	}
}

// wsPath resolves a config-relative path against the workspace.
func wsPath(ws, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ws, path)
}
