package driving

import (
	"context"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// Ingestor runs ingestion rounds over the active conversations.
type Ingestor interface {
	// Round registers newly visible conversations, then fetches and
	// archives every active one once, in parallel up to the worker cap.
	// Safe to call repeatedly; a degraded conversation is skipped for the
	// round, not disabled.
	Round(ctx context.Context) error

	// SyncConversation ingests a single conversation until it is caught
	// up or the context is cancelled.
	SyncConversation(ctx context.Context, conversationID int64) error

	// Status reports ingestion health per conversation.
	Status(ctx context.Context) ([]domain.SyncStatus, error)
}

// IndexRebuilder repopulates the search index from the metadata store. The
// index is a cache; a lost or corrupted one is rebuilt from here.
type IndexRebuilder interface {
	// Rebuild submits every current message of every active conversation
	// to the index and commits. Returns the number of documents indexed.
	Rebuild(ctx context.Context) (int, error)
}
