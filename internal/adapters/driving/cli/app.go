package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	bleveidx "github.com/helian-labs/chatvault/internal/adapters/driven/index/bleve"
	"github.com/helian-labs/chatvault/internal/adapters/driven/source"
	"github.com/helian-labs/chatvault/internal/adapters/driven/storage/sqlite"
	"github.com/helian-labs/chatvault/internal/analysis"
	"github.com/helian-labs/chatvault/internal/config"
	"github.com/helian-labs/chatvault/internal/core/services"
	"github.com/helian-labs/chatvault/internal/logger"
	"github.com/helian-labs/chatvault/internal/media"
	"github.com/helian-labs/chatvault/internal/ratelimit"
)

// app is the composition root: everything a command needs, wired from the
// config file.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	store     *sqlite.Store
	index     *bleveidx.Index
	pipeline  *analysis.Pipeline
	source    *source.FeedClient
	ingestor  *services.Ingestor
	reindexer *services.Reindexer
	query     *services.Query
}

// newApp loads configuration and wires the full service graph. withSource
// controls whether a source client is required; query-only commands run
// without one.
func newApp(ctx context.Context, withSource bool) (*app, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".chatvault", "chatvault.toml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	var matcher *analysis.Matcher
	if cfg.Keywords.Path != "" {
		matcher, err = analysis.LoadMatcher(cfg.Keywords.Path)
		if err != nil {
			return nil, fmt.Errorf("load keyword patterns: %w", err)
		}
		if cfg.Keywords.Watch {
			if err := matcher.Watch(ctx, cfg.Keywords.Path, log); err != nil {
				return nil, fmt.Errorf("watch keyword patterns: %w", err)
			}
		}
	}

	pipeline, err := analysis.NewPipeline(matcher)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	index, err := bleveidx.Open(cfg.IndexDir(), pipeline,
		bleveidx.WithCommitPolicy(cfg.Index.CommitDocs, cfg.Index.CommitInterval.Std()),
		bleveidx.WithLogger(log))
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		index:    index,
		pipeline: pipeline,
	}

	if withSource {
		if cfg.Ingest.SpoolDir == "" {
			a.Close()
			return nil, fmt.Errorf("ingest.spool_dir is not configured")
		}
		feed, err := source.NewFeedClient(cfg.Ingest.SpoolDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.source = feed

		limiter := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
		normalizer := media.NewNormalizer(media.Budgets{
			MaxInputBytes: cfg.Media.MaxInputBytes,
			MaxPixels:     cfg.Media.MaxPixels,
			MaxDim:        cfg.Media.MaxDim,
			StickerSize:   cfg.Media.StickerSize,
			MaxFrames:     cfg.Media.MaxFrames,
			RenderBudget:  cfg.Media.RenderBudget.Std(),
		}, log)

		retry := services.DefaultRetryPolicy()
		retry.MaxAttempts = cfg.Ingest.MaxRetries

		a.ingestor = services.NewIngestor(
			feed,
			store.Conversations(),
			store.Messages(),
			store.Media(),
			store.Cursors(),
			index,
			normalizer,
			limiter,
			retry,
			services.IngestorConfig{
				Workers:              cfg.Ingest.Workers,
				BatchSize:            cfg.Ingest.BatchSize,
				FetchTimeout:         cfg.Ingest.FetchTimeout.Std(),
				ScopePerConversation: cfg.Ingest.ScopePerConversation,
			},
			log,
		)
	}

	a.reindexer = services.NewReindexer(store.Conversations(), store.Messages(), index, log)

	a.query = services.NewQuery(
		index,
		store.Messages(),
		store.Media(),
		pipeline,
		services.RecencyScorer{HalfLife: 30 * 24 * time.Hour},
		services.QueryConfig{
			PageSize:   cfg.Search.PageSize,
			SnippetLen: cfg.Search.SnippetLen,
		},
		log,
	)

	return a, nil
}

// Close releases the app's resources in reverse wiring order.
func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Warn("closing index", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing store", zap.Error(err))
		}
	}
	if a.source != nil {
		_ = a.source.Close()
	}
	_ = a.log.Sync()
}
