package driven

import (
	"context"
	"time"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// ConversationStore persists conversation metadata.
type ConversationStore interface {
	// Save stores or updates a conversation.
	Save(ctx context.Context, c *domain.Conversation) error

	// Get retrieves a conversation by ID.
	Get(ctx context.Context, id int64) (*domain.Conversation, error)

	// ListActive returns conversations scheduled for ingestion.
	ListActive(ctx context.Context) ([]domain.Conversation, error)
}

// MessageStore persists archived messages together with their media assets.
type MessageStore interface {
	// SaveMessage stores a message and its media assets in one
	// transaction. Message rows and asset rows commit or roll back
	// together.
	SaveMessage(ctx context.Context, msg *domain.Message, assets []domain.MediaAsset) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// FindByFingerprint returns the message with the given fingerprint in
	// the conversation, or domain.ErrNotFound.
	FindByFingerprint(ctx context.Context, conversationID int64, fingerprint string) (*domain.Message, error)

	// FindCurrentAtPosition returns the current (non-superseded) message
	// version at a remote position, or domain.ErrNotFound. Used to detect
	// edits.
	FindCurrentAtPosition(ctx context.Context, conversationID, position int64) (*domain.Message, error)

	// Supersede links an old message version to its replacement.
	Supersede(ctx context.Context, oldID, newID string) error

	// ListCurrent pages through the current (non-superseded) messages of
	// a conversation in ascending position order, starting strictly after
	// afterPosition. Feeds index rebuilds.
	ListCurrent(ctx context.Context, conversationID, afterPosition int64, limit int) ([]domain.Message, error)
}

// MediaStore persists normalized media bytes.
type MediaStore interface {
	// GetAsset retrieves asset metadata by ID.
	GetAsset(ctx context.Context, id string) (*domain.MediaAsset, error)

	// FindByDigest returns an existing asset with the same original-bytes
	// digest, or domain.ErrNotFound. Lets shared stickers dedupe to one
	// asset.
	FindByDigest(ctx context.Context, digest string) (*domain.MediaAsset, error)

	// GetBytes returns the normalized bytes and canonical format.
	GetBytes(ctx context.Context, id string) ([]byte, string, error)

	// PutBytes stores the normalized bytes for an asset.
	PutBytes(ctx context.Context, id string, data []byte) error
}

// CursorStore persists sync cursors. Advance is the monotonicity gate of
// the whole pipeline.
type CursorStore interface {
	// Get returns the cursor for a conversation; a conversation never
	// synced has position 0.
	Get(ctx context.Context, conversationID int64) (*domain.SyncCursor, error)

	// Advance moves the cursor to position, failing with
	// *domain.OutOfOrderError unless position is strictly greater than
	// the stored one.
	Advance(ctx context.Context, conversationID, position int64, at time.Time) error
}
