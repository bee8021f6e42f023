package driven

import (
	"context"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// SearchIndex is the full-text index engine. Submissions from concurrent
// workers are serialized into batched commits by the engine itself;
// callers never hold a writer lock.
type SearchIndex interface {
	// Submit queues a document for the next commit.
	Submit(ctx context.Context, doc domain.IndexDocument) error

	// Tombstone removes a superseded message version from the index so
	// default queries surface only the current version.
	Tombstone(ctx context.Context, messageID string) error

	// Commit flushes queued documents. The batch becomes visible to new
	// queries atomically: readers see all of it or none of it.
	Commit(ctx context.Context) error

	// Search executes a query against the last committed state. Never
	// blocks on ingestion.
	Search(ctx context.Context, q domain.Query) (domain.ResultPage, error)

	// Close flushes and releases the index.
	Close() error
}
