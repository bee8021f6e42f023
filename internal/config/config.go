// Package config loads archiver configuration from a TOML file, filling
// unset fields with defaults that match the shipped budgets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "30s" or "2m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration document.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Ingest    IngestConfig    `toml:"ingest"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Media     MediaConfig     `toml:"media"`
	Index     IndexConfig     `toml:"index"`
	Search    SearchConfig    `toml:"search"`
	Keywords  KeywordsConfig  `toml:"keywords"`
	Log       LogConfig       `toml:"log"`
}

// StorageConfig locates the metadata database.
type StorageConfig struct {
	// DataDir holds the SQLite database and the index directory.
	// Defaults to ~/.chatvault.
	DataDir string `toml:"data_dir"`
}

// IngestConfig tunes the worker pool.
type IngestConfig struct {
	// Workers bounds concurrent conversation syncs.
	Workers int `toml:"workers"`

	// BatchSize is the fetch window per request.
	BatchSize int `toml:"batch_size"`

	// MaxRetries bounds consecutive batch failures before a conversation
	// is marked degraded for the round.
	MaxRetries int `toml:"max_retries"`

	// FetchTimeout time-boxes one batch fetch.
	FetchTimeout Duration `toml:"fetch_timeout"`

	// RoundInterval is the pause between rounds in serve mode.
	RoundInterval Duration `toml:"round_interval"`

	// ScopePerConversation rate-limits each conversation independently
	// instead of sharing one credential-wide scope.
	ScopePerConversation bool `toml:"scope_per_conversation"`

	// SpoolDir is where the record-feed source reads batches from.
	SpoolDir string `toml:"spool_dir"`
}

// RateLimitConfig shapes the per-scope token buckets.
type RateLimitConfig struct {
	Capacity     int     `toml:"capacity"`
	RefillPerSec float64 `toml:"refill_per_sec"`
}

// MediaConfig bounds the normalizer.
type MediaConfig struct {
	MaxInputBytes int      `toml:"max_input_bytes"`
	MaxPixels     int      `toml:"max_pixels"`
	MaxDim        int      `toml:"max_dim"`
	StickerSize   int      `toml:"sticker_size"`
	MaxFrames     int      `toml:"max_frames"`
	RenderBudget  Duration `toml:"render_budget"`
}

// IndexConfig tunes the index writer's commit cadence.
type IndexConfig struct {
	// CommitDocs commits after this many buffered documents.
	CommitDocs int `toml:"commit_docs"`

	// CommitInterval commits at least this often while documents are
	// buffered.
	CommitInterval Duration `toml:"commit_interval"`
}

// SearchConfig shapes query defaults.
type SearchConfig struct {
	PageSize   int `toml:"page_size"`
	SnippetLen int `toml:"snippet_len"`
}

// KeywordsConfig locates the keyword/entity pattern file.
type KeywordsConfig struct {
	// Path is the pattern file; empty disables the matcher.
	Path string `toml:"path"`

	// Watch hot-reloads the pattern file on change.
	Watch bool `toml:"watch"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration the archiver runs with when no file
// overrides it.
func Default() Config {
	return Config{
		Ingest: IngestConfig{
			Workers:       4,
			BatchSize:     50,
			MaxRetries:    5,
			FetchTimeout:  Duration(30 * time.Second),
			RoundInterval: Duration(time.Minute),
		},
		RateLimit: RateLimitConfig{
			Capacity:     5,
			RefillPerSec: 1,
		},
		Media: MediaConfig{
			MaxInputBytes: 10 << 20,
			MaxPixels:     25_000_000,
			MaxDim:        2048,
			StickerSize:   256,
			MaxFrames:     64,
			RenderBudget:  Duration(2 * time.Second),
		},
		Index: IndexConfig{
			CommitDocs:     100,
			CommitInterval: Duration(30 * time.Second),
		},
		Search: SearchConfig{
			PageSize:   20,
			SnippetLen: 160,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is
// not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.withDataDir()
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg.withDataDir()
}

func (c Config) withDataDir() (Config, error) {
	if c.Storage.DataDir != "" {
		return c, c.validate()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return c, fmt.Errorf("resolve home directory: %w", err)
	}
	c.Storage.DataDir = filepath.Join(home, ".chatvault")
	return c, c.validate()
}

func (c Config) validate() error {
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	if c.RateLimit.Capacity <= 0 || c.RateLimit.RefillPerSec <= 0 {
		return fmt.Errorf("ratelimit capacity and refill_per_sec must be positive")
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive")
	}
	return nil
}

// IndexDir is where the search index segments live.
func (c Config) IndexDir() string {
	return filepath.Join(c.Storage.DataDir, "index")
}

// DatabasePath is the SQLite metadata database file.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "metadata.db")
}
