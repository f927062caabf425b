package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `
platforms:
  - id: telegraph
    domain: telegra.ph
    domain_rating: 91
    adapter: telegraph
    access_token: tok-1
  - id: devto
    domain: dev.to
    domain_rating: 89
    adapter: devto
    access_token: tok-2
    disabled: true
`)

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Platforms, 2)

	assert.Equal(t, "telegraph", catalog.Platforms[0].ID)
	assert.Equal(t, "telegra.ph", catalog.Platforms[0].Domain)
	assert.Equal(t, 91, catalog.Platforms[0].DomainRating)
	assert.False(t, catalog.Platforms[0].Disabled)
	assert.True(t, catalog.Platforms[1].Disabled)
}

func TestLoadCatalog_RejectsDuplicateIDs(t *testing.T) {
	path := writeCatalog(t, `
platforms:
  - id: telegraph
    domain: telegra.ph
  - id: telegraph
    domain: telegra.ph
`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_RejectsMissingFields(t *testing.T) {
	path := writeCatalog(t, `
platforms:
  - domain: telegra.ph
`)
	_, err := LoadCatalog(path)
	assert.Error(t, err)

	path = writeCatalog(t, `
platforms:
  - id: telegraph
`)
	_, err = LoadCatalog(path)
	assert.Error(t, err)
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
