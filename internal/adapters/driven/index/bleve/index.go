// Package bleve adapts a bleve full-text index to the SearchIndex port.
//
// Writes from concurrent ingest workers are funneled through a single
// buffered batch; the batch is applied atomically, so readers observe
// either the pre-commit or the post-commit state and never a partial
// batch. Commits happen every commitDocs buffered documents or at least
// every commitInterval while documents are pending.
package bleve

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/helian-labs/chatvault/internal/analysis"
	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// analyzerName is the registered analyzer built on the mixed-script
// tokenizer.
const analyzerName = "chatvault_text"

// Ensure Index implements the interface.
var _ driven.SearchIndex = (*Index)(nil)

// Index is a bleve-backed SearchIndex.
type Index struct {
	idx bleve.Index
	log *zap.Logger

	commitDocs     int
	commitInterval time.Duration

	mu       sync.Mutex
	batch    *bleve.Batch
	buffered int

	stop chan struct{}
	done chan struct{}
}

// Option configures an Index.
type Option func(*Index)

// WithCommitPolicy overrides the commit cadence.
func WithCommitPolicy(docs int, interval time.Duration) Option {
	return func(i *Index) {
		if docs > 0 {
			i.commitDocs = docs
		}
		if interval > 0 {
			i.commitInterval = interval
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(i *Index) {
		i.log = log
	}
}

// Open opens (creating if needed) the index at path. The pipeline must be
// the one messages were analyzed with; it is registered as the index's
// tokenizer.
func Open(path string, p *analysis.Pipeline, opts ...Option) (*Index, error) {
	analysis.RegisterBleve(p)

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		mapping, mErr := buildMapping()
		if mErr != nil {
			return nil, mErr
		}
		idx, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	i := &Index{
		idx:            idx,
		log:            zap.NewNop(),
		commitDocs:     100,
		commitInterval: 30 * time.Second,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.batch = idx.NewBatch()

	go i.commitLoop()
	return i, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()

	if err := m.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": analysis.TokenizerName,
	}); err != nil {
		return nil, fmt.Errorf("registering analyzer: %w", err)
	}

	text := bleve.NewTextFieldMapping()
	text.Analyzer = analyzerName
	text.Store = false

	term := bleve.NewTextFieldMapping()
	term.Analyzer = keyword.Name
	term.Store = false

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("conversation", term)
	doc.AddFieldMappingsAt("topic", term)
	doc.AddFieldMappingsAt("author", term)
	doc.AddFieldMappingsAt("timestamp", numeric)

	m.DefaultMapping = doc
	m.DefaultAnalyzer = analyzerName
	return m, nil
}

// Submit queues a document for the next commit.
func (i *Index) Submit(_ context.Context, d domain.IndexDocument) error {
	fields := map[string]interface{}{
		"text":         d.Text,
		"conversation": strconv.FormatInt(d.ConversationID, 10),
		"author":       d.Author,
		"timestamp":    float64(d.Timestamp.Unix()),
	}
	if d.TopicID != 0 {
		fields["topic"] = strconv.FormatInt(d.TopicID, 10)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.batch.Index(d.MessageID, fields); err != nil {
		return fmt.Errorf("batching document: %w", err)
	}
	i.buffered++
	if i.buffered >= i.commitDocs {
		return i.commitLocked()
	}
	return nil
}

// Tombstone removes a superseded message version from the index.
func (i *Index) Tombstone(_ context.Context, messageID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.batch.Delete(messageID)
	i.buffered++
	if i.buffered >= i.commitDocs {
		return i.commitLocked()
	}
	return nil
}

// Commit flushes queued documents atomically.
func (i *Index) Commit(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.commitLocked()
}

// commitLocked applies the buffered batch. Callers hold i.mu.
func (i *Index) commitLocked() error {
	if i.buffered == 0 {
		return nil
	}
	count := i.buffered
	if err := i.idx.Batch(i.batch); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexCommit, err)
	}
	i.batch.Reset()
	i.buffered = 0
	i.log.Debug("index batch committed", zap.Int("docs", count))
	return nil
}

// commitLoop commits buffered documents on a timer so a slow trickle of
// submissions still becomes visible within commitInterval.
func (i *Index) commitLoop() {
	defer close(i.done)
	ticker := time.NewTicker(i.commitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-i.stop:
			return
		case <-ticker.C:
			i.mu.Lock()
			if err := i.commitLocked(); err != nil {
				i.log.Warn("periodic index commit failed", zap.Error(err))
			}
			i.mu.Unlock()
		}
	}
}

// Search executes a query against the last committed state.
func (i *Index) Search(ctx context.Context, q domain.Query) (domain.ResultPage, error) {
	size := q.PageSize
	if size <= 0 {
		size = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), size, 0, false)
	req.Fields = []string{"timestamp"}
	req.SortBy([]string{"-_score", "-timestamp", "_id"})

	if q.After != "" {
		after, err := decodeCursor(q.After)
		if err != nil {
			return domain.ResultPage{}, fmt.Errorf("%w: bad cursor", domain.ErrInvalidInput)
		}
		req.SearchAfter = after
	}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return domain.ResultPage{}, fmt.Errorf("searching index: %w", err)
	}

	page := domain.ResultPage{
		Hits:  make([]domain.Hit, 0, len(res.Hits)),
		Total: res.Total,
	}
	for _, h := range res.Hits {
		hit := domain.Hit{
			MessageID: h.ID,
			Score:     h.Score,
			SortKey:   h.Sort,
		}
		if ts, ok := h.Fields["timestamp"].(float64); ok {
			hit.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
		page.Hits = append(page.Hits, hit)
	}

	if len(res.Hits) == size {
		page.NextCursor = encodeCursor(res.Hits[len(res.Hits)-1].Sort)
	}
	return page, nil
}

// buildQuery translates a domain query into a bleve query tree.
func buildQuery(q domain.Query) query.Query {
	var conjuncts []query.Query

	if q.Text != "" {
		match := bleve.NewMatchQuery(q.Text)
		match.SetField("text")
		match.Analyzer = analyzerName
		conjuncts = append(conjuncts, match)
	}
	if q.ConversationID != 0 {
		term := bleve.NewTermQuery(strconv.FormatInt(q.ConversationID, 10))
		term.SetField("conversation")
		conjuncts = append(conjuncts, term)
	}
	if q.TopicID != 0 {
		term := bleve.NewTermQuery(strconv.FormatInt(q.TopicID, 10))
		term.SetField("topic")
		conjuncts = append(conjuncts, term)
	}
	if !q.From.IsZero() || !q.Until.IsZero() {
		var minVal, maxVal *float64
		if !q.From.IsZero() {
			v := float64(q.From.Unix())
			minVal = &v
		}
		if !q.Until.IsZero() {
			v := float64(q.Until.Unix())
			maxVal = &v
		}
		rng := bleve.NewNumericRangeQuery(minVal, maxVal)
		rng.SetField("timestamp")
		conjuncts = append(conjuncts, rng)
	}

	if len(conjuncts) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(conjuncts) == 1 {
		return conjuncts[0]
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

// Close flushes and releases the index.
func (i *Index) Close() error {
	close(i.stop)
	<-i.done

	i.mu.Lock()
	err := i.commitLocked()
	i.mu.Unlock()
	if cErr := i.idx.Close(); err == nil {
		err = cErr
	}
	return err
}

// encodeCursor packs a hit's sort key into an opaque resume token.
func encodeCursor(sortKey []string) string {
	raw, _ := json.Marshal(sortKey)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor unpacks a resume token.
func decodeCursor(cursor string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	var sortKey []string
	if err := json.Unmarshal(raw, &sortKey); err != nil {
		return nil, err
	}
	return sortKey, nil
}
