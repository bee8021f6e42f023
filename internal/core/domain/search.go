package domain

import "time"

// IndexDocument is the write-once-per-message-version projection handed to
// the search index. Rebuildable from the Message at any time; the index is
// a cache of the metadata store, not a source of truth.
type IndexDocument struct {
	MessageID      string
	ConversationID int64
	TopicID        int64
	Author         string
	Timestamp      time.Time
	Text           string
}

// Query is a search request against the index.
type Query struct {
	// Text is the free-text query. Empty text with filters is valid and
	// returns the newest matching messages.
	Text string

	// ConversationID filters to one conversation when non-zero.
	ConversationID int64

	// TopicID filters to one forum topic when non-zero.
	TopicID int64

	// From and Until bound the message timestamp when non-zero.
	From  time.Time
	Until time.Time

	// PageSize caps the number of hits returned.
	PageSize int

	// After resumes from a previous ResultPage's NextCursor. Cursor-based
	// so pages stay stable under concurrent ingestion.
	After string
}

// Hit is one ranked match from the index.
type Hit struct {
	MessageID string
	Score     float64
	Timestamp time.Time

	// SortKey is the engine's opaque resume key for this hit.
	SortKey []string
}

// ResultPage is one page of index hits.
type ResultPage struct {
	Hits []Hit

	// NextCursor resumes after the last hit, empty when exhausted.
	NextCursor string

	// Total is the engine's total match estimate.
	Total uint64
}

// SearchResult is a hydrated hit returned by the query service.
type SearchResult struct {
	Message Message

	// Score is the fused relevance score after ranking.
	Score float64

	// Snippet is a highlight window around the best match, with redacted
	// spans masked.
	Snippet string
}
