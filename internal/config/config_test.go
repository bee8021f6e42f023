package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, 5, cfg.RateLimit.Capacity)
	assert.Equal(t, 20, cfg.Search.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Index.CommitInterval.Std())
	assert.NotEmpty(t, cfg.Storage.DataDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatvault.toml")
	doc := `
[storage]
data_dir = "` + dir + `"

[ingest]
workers = 2
fetch_timeout = "45s"

[ratelimit]
capacity = 10
refill_per_sec = 2.5

[search]
page_size = 50
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, 45*time.Second, cfg.Ingest.FetchTimeout.Std())
	assert.Equal(t, 10, cfg.RateLimit.Capacity)
	assert.InDelta(t, 2.5, cfg.RateLimit.RefillPerSec, 1e-9)
	assert.Equal(t, 50, cfg.Search.PageSize)

	// Untouched sections keep their defaults.
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, 160, cfg.Search.SnippetLen)

	assert.Equal(t, filepath.Join(dir, "index"), cfg.IndexDir())
	assert.Equal(t, filepath.Join(dir, "metadata.db"), cfg.DatabasePath())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatvault.toml")
	doc := `
[storage]
data_dir = "` + dir + `"

[ingest]
workers = 0
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.workers")
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
