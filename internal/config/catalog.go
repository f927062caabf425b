package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry describes one publish target in the platform catalog.
// The catalog is the operator-maintained list of third-party platforms
// linkforge rotates through; registry state (health, counters) is derived
// at runtime and persisted separately.
type CatalogEntry struct {
	ID           string `yaml:"id"`
	Domain       string `yaml:"domain"`
	DomainRating int    `yaml:"domain_rating"`

	// Adapter selects the publish implementation
	// (telegraph, devto, hashnode, rest, static)
	Adapter string `yaml:"adapter"`

	// Adapter credentials/endpoint
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`

	// Hashnode publication to post into; ignored by other adapters
	PublicationID string `yaml:"publication_id,omitempty"`

	// Administrative kill switch; disabled platforms never rotate
	Disabled bool `yaml:"disabled"`
}

// Catalog is the full platform catalog file.
type Catalog struct {
	Platforms []CatalogEntry `yaml:"platforms"`
}

// LoadCatalog reads and validates the platform catalog YAML.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse platform catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Platforms))
	for i, entry := range catalog.Platforms {
		if entry.ID == "" {
			return nil, fmt.Errorf("platform catalog entry %d: id is required", i)
		}
		if entry.Domain == "" {
			return nil, fmt.Errorf("platform %s: domain is required", entry.ID)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("platform catalog: duplicate id %s", entry.ID)
		}
		seen[entry.ID] = true
	}

	return &catalog, nil
}
