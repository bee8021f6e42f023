package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helian-labs/chatvault/internal/adapters/driven/storage/memory"
	"github.com/helian-labs/chatvault/internal/analysis"
	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driving"
)

// scriptedIndex returns a canned page and records the query it got.
type scriptedIndex struct {
	fakeIndex
	page     domain.ResultPage
	lastSeen domain.Query
}

func (s *scriptedIndex) Search(_ context.Context, q domain.Query) (domain.ResultPage, error) {
	s.lastSeen = q
	return s.page, nil
}

type queryHarness struct {
	index    *scriptedIndex
	messages *memory.MessageStore
	media    *memory.MediaStore
	query    *Query
}

func newQueryHarness(t *testing.T, scorer Scorer) *queryHarness {
	t.Helper()

	pipeline, err := analysis.NewPipeline(nil)
	require.NoError(t, err)

	h := &queryHarness{
		index: &scriptedIndex{fakeIndex: *newFakeIndex()},
		media: memory.NewMediaStore(),
	}
	h.messages = memory.NewMessageStore(h.media)
	h.query = NewQuery(h.index, h.messages, h.media, pipeline, scorer,
		QueryConfig{PageSize: 20, SnippetLen: 160}, nil)
	return h
}

func (h *queryHarness) seedMessage(t *testing.T, id, text string, ts time.Time) {
	t.Helper()
	require.NoError(t, h.messages.SaveMessage(context.Background(), &domain.Message{
		ID:             id,
		ConversationID: 1,
		Position:       int64(len(id)),
		Author:         "ada",
		Timestamp:      ts,
		Text:           text,
		Fingerprint:    "fp-" + id,
	}, nil))
}

func TestQuerySearchHydratesAndHighlights(t *testing.T) {
	h := newQueryHarness(t, nil)
	ts := time.Now().UTC().Add(-time.Hour)
	h.seedMessage(t, "m1", "the deploy finished without trouble", ts)
	h.index.page = domain.ResultPage{
		Hits:  []domain.Hit{{MessageID: "m1", Score: 2.5, Timestamp: ts}},
		Total: 1,
	}

	page, err := h.query.Search(context.Background(), driving.SearchRequest{Text: "deploy"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "m1", page.Results[0].Message.ID)
	assert.Equal(t, 2.5, page.Results[0].Score)
	assert.Contains(t, page.Results[0].Snippet, "**deploy**")
	assert.Equal(t, uint64(1), page.Total)
}

func TestQuerySearchPassesFiltersAndCursor(t *testing.T) {
	h := newQueryHarness(t, nil)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := h.query.Search(context.Background(), driving.SearchRequest{
		Text:           "notes",
		ConversationID: 7,
		TopicID:        3,
		FromUnix:       from.Unix(),
		PageSize:       5,
		Cursor:         "resume-token",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), h.index.lastSeen.ConversationID)
	assert.Equal(t, int64(3), h.index.lastSeen.TopicID)
	assert.Equal(t, from, h.index.lastSeen.From)
	assert.Equal(t, 5, h.index.lastSeen.PageSize)
	assert.Equal(t, "resume-token", h.index.lastSeen.After)
}

func TestQuerySearchDropsDanglingHits(t *testing.T) {
	h := newQueryHarness(t, nil)
	ts := time.Now().UTC()
	h.seedMessage(t, "m1", "present", ts)
	h.index.page = domain.ResultPage{
		Hits: []domain.Hit{
			{MessageID: "ghost", Score: 3},
			{MessageID: "m1", Score: 1},
		},
		Total: 2,
	}

	page, err := h.query.Search(context.Background(), driving.SearchRequest{Text: "present"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "m1", page.Results[0].Message.ID)
}

func TestQuerySearchScorerReordersWithinPage(t *testing.T) {
	h := newQueryHarness(t, RecencyScorer{HalfLife: time.Hour})
	now := time.Now().UTC()
	h.seedMessage(t, "old", "quarterly report draft", now.Add(-24*time.Hour))
	h.seedMessage(t, "new", "quarterly report final", now.Add(-time.Minute))
	h.index.page = domain.ResultPage{
		Hits: []domain.Hit{
			{MessageID: "old", Score: 1.1},
			{MessageID: "new", Score: 1.0},
		},
		Total: 2,
	}

	page, err := h.query.Search(context.Background(), driving.SearchRequest{Text: "quarterly"})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)

	// The day-old hit's slight relevance edge loses to recency decay.
	assert.Equal(t, "new", page.Results[0].Message.ID)
	assert.Equal(t, "old", page.Results[1].Message.ID)
}

func TestQuerySearchCursorPassthrough(t *testing.T) {
	h := newQueryHarness(t, nil)
	h.index.page = domain.ResultPage{NextCursor: "next-token"}

	page, err := h.query.Search(context.Background(), driving.SearchRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "next-token", page.NextCursor)
}

func TestQuerySearchRedactsFlaggedPatterns(t *testing.T) {
	matcher := analysis.NewMatcher([]analysis.Pattern{
		{Text: "secret-project", Redact: true},
	})
	pipeline, err := analysis.NewPipeline(matcher)
	require.NoError(t, err)

	media := memory.NewMediaStore()
	messages := memory.NewMessageStore(media)
	index := &scriptedIndex{fakeIndex: *newFakeIndex()}
	query := NewQuery(index, messages, media, pipeline, nil,
		QueryConfig{PageSize: 20, SnippetLen: 160}, nil)

	ts := time.Now().UTC()
	require.NoError(t, messages.SaveMessage(context.Background(), &domain.Message{
		ID:             "m1",
		ConversationID: 1,
		Position:       1,
		Timestamp:      ts,
		Text:           "status update on secret-project today",
		Fingerprint:    "fp1",
	}, nil))
	index.page = domain.ResultPage{Hits: []domain.Hit{{MessageID: "m1", Score: 1, Timestamp: ts}}}

	page, err := query.Search(context.Background(), driving.SearchRequest{Text: "status"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.NotContains(t, page.Results[0].Snippet, "secret-project")
}

func TestQueryGetMedia(t *testing.T) {
	h := newQueryHarness(t, nil)
	ctx := context.Background()

	ok := domain.MediaAsset{
		ID:              "a1",
		CanonicalFormat: "image/png",
		Digest:          "d1",
		Status:          domain.MediaNormalized,
	}
	failed := domain.MediaAsset{
		ID:         "a2",
		Digest:     "d2",
		Status:     domain.MediaFailed,
		FailReason: "truncated header",
	}
	require.NoError(t, h.messages.SaveMessage(ctx, &domain.Message{
		ID: "m1", ConversationID: 1, Position: 1, Fingerprint: "fp1",
		MediaRefs: []string{"a1", "a2"},
	}, []domain.MediaAsset{ok, failed}))
	require.NoError(t, h.media.PutBytes(ctx, "a1", []byte{5, 6}))

	data, format, err := h.query.GetMedia(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, data)
	assert.Equal(t, "image/png", format)

	_, _, err = h.query.GetMedia(ctx, "a2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = h.query.GetMedia(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecencyScorer(t *testing.T) {
	s := RecencyScorer{HalfLife: time.Hour}

	assert.InDelta(t, 2.0, s.Score(2.0, 0), 1e-9)
	assert.InDelta(t, 1.0, s.Score(2.0, time.Hour), 1e-9)
	assert.InDelta(t, 0.5, s.Score(2.0, 2*time.Hour), 1e-9)

	// Zero half-life disables decay.
	assert.InDelta(t, 2.0, RecencyScorer{}.Score(2.0, time.Hour), 1e-9)
}
