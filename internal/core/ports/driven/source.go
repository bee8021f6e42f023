package driven

import (
	"context"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// SourceClient is the injected capability for the remote messaging source.
// The wire protocol and session handshake live behind this interface; the
// core only fetches batches and reacts to the typed errors.
//
// Fetch returns records with positions strictly greater than afterPosition,
// in ascending position order, at most limit of them. Errors:
//   - *domain.FloodWaitError: server-issued flood control with an explicit
//     wait duration; scoped backoff, not a failure.
//   - *domain.TransientError: network/protocol failure, retry with backoff.
//   - anything else: permanent for this batch.
type SourceClient interface {
	Fetch(ctx context.Context, conversationID, afterPosition int64, limit int) ([]domain.RawRecord, error)

	// Conversations lists the chats the credential can see, for
	// registering new conversations.
	Conversations(ctx context.Context) ([]domain.Conversation, error)

	// Close releases the session.
	Close() error
}
