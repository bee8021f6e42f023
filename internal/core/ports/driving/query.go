package driving

import (
	"context"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// SearchRequest is the external query contract.
type SearchRequest struct {
	Text           string
	ConversationID int64
	TopicID        int64
	FromUnix       int64
	UntilUnix      int64
	PageSize       int

	// Cursor resumes a previous page; empty starts from the top.
	Cursor string
}

// SearchPage is one page of hydrated results.
type SearchPage struct {
	Results []domain.SearchResult

	// NextCursor is empty when the result set is exhausted.
	NextCursor string

	// Total is the engine's total match estimate.
	Total uint64
}

// QueryService is the read-only façade over the index and metadata store.
// Queries observe whatever was last committed and never block ingestion.
type QueryService interface {
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)

	// GetMedia returns the normalized bytes and canonical format of an
	// asset.
	GetMedia(ctx context.Context, assetID string) ([]byte, string, error)
}
