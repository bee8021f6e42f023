package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/helian-labs/chatvault/internal/analysis"
	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
	"github.com/helian-labs/chatvault/internal/core/ports/driving"
)

// Ensure Query implements the interface.
var _ driving.QueryService = (*Query)(nil)

// Scorer fuses index relevance with message age into the final ranking
// score. Implementations must be pure so pagination stays stable.
type Scorer interface {
	Score(relevance float64, age time.Duration) float64
}

// RecencyScorer decays relevance exponentially with age.
type RecencyScorer struct {
	// HalfLife is the age at which relevance is halved.
	HalfLife time.Duration
}

// Score implements Scorer.
func (s RecencyScorer) Score(relevance float64, age time.Duration) float64 {
	if s.HalfLife <= 0 || age <= 0 {
		return relevance
	}
	return relevance * math.Exp2(-float64(age)/float64(s.HalfLife))
}

// QueryConfig tunes the query façade.
type QueryConfig struct {
	// PageSize is the default page size when a request has none.
	PageSize int

	// SnippetLen bounds snippets in runes.
	SnippetLen int
}

// Query is the read-only façade over the index and metadata store. Hits
// from the index are hydrated from the metadata store, re-ranked by the
// scorer, and decorated with highlighted snippets.
type Query struct {
	index    driven.SearchIndex
	messages driven.MessageStore
	media    driven.MediaStore
	pipeline *analysis.Pipeline
	scorer   Scorer
	cfg      QueryConfig
	log      *zap.Logger
}

// NewQuery creates a query service. A nil scorer keeps the index order
// untouched; a nil logger is replaced with a no-op one.
func NewQuery(
	index driven.SearchIndex,
	messages driven.MessageStore,
	media driven.MediaStore,
	pipeline *analysis.Pipeline,
	scorer Scorer,
	cfg QueryConfig,
	log *zap.Logger,
) *Query {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.SnippetLen <= 0 {
		cfg.SnippetLen = 160
	}
	return &Query{
		index:    index,
		messages: messages,
		media:    media,
		pipeline: pipeline,
		scorer:   scorer,
		cfg:      cfg,
		log:      log,
	}
}

// Search executes a query and returns one hydrated page.
func (q *Query) Search(ctx context.Context, req driving.SearchRequest) (*driving.SearchPage, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = q.cfg.PageSize
	}

	query := domain.Query{
		Text:           req.Text,
		ConversationID: req.ConversationID,
		TopicID:        req.TopicID,
		PageSize:       pageSize,
		After:          req.Cursor,
	}
	if req.FromUnix > 0 {
		query.From = time.Unix(req.FromUnix, 0).UTC()
	}
	if req.UntilUnix > 0 {
		query.Until = time.Unix(req.UntilUnix, 0).UTC()
	}

	page, err := q.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	terms := q.queryTerms(req.Text)
	now := time.Now().UTC()

	results := make([]domain.SearchResult, 0, len(page.Hits))
	for _, hit := range page.Hits {
		msg, err := q.messages.GetMessage(ctx, hit.MessageID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// The index can briefly lead the metadata store after a
				// tombstone; drop the hit.
				q.log.Debug("hit without message", zap.String("message", hit.MessageID))
				continue
			}
			return nil, fmt.Errorf("hydrating hit: %w", err)
		}

		score := hit.Score
		if q.scorer != nil {
			score = q.scorer.Score(hit.Score, now.Sub(msg.Timestamp))
		}

		results = append(results, domain.SearchResult{
			Message: *msg,
			Score:   score,
			Snippet: q.pipeline.Snippet(msg.Text, terms, q.cfg.SnippetLen),
		})
	}

	if q.scorer != nil {
		sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	}

	return &driving.SearchPage{
		Results:    results,
		NextCursor: page.NextCursor,
		Total:      page.Total,
	}, nil
}

// GetMedia returns the normalized bytes and canonical format of an asset.
func (q *Query) GetMedia(ctx context.Context, assetID string) ([]byte, string, error) {
	asset, err := q.media.GetAsset(ctx, assetID)
	if err != nil {
		return nil, "", fmt.Errorf("loading asset: %w", err)
	}
	if asset.Status != domain.MediaNormalized {
		return nil, "", fmt.Errorf("asset %s not normalized (%s): %w",
			assetID, asset.Status, domain.ErrNotFound)
	}
	return q.media.GetBytes(ctx, assetID)
}

// queryTerms extracts the highlightable terms of a query text.
func (q *Query) queryTerms(text string) []string {
	if text == "" {
		return nil
	}
	tokens := q.pipeline.Analyze(text)
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if tok.Kind == analysis.KindKeyword || seen[tok.Term] {
			continue
		}
		seen[tok.Term] = true
		terms = append(terms, tok.Term)
	}
	return terms
}
