package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helian-labs/chatvault/internal/core/ports/driven"
	"github.com/helian-labs/chatvault/internal/core/ports/driving"
)

// Ensure Reindexer implements the interface.
var _ driving.IndexRebuilder = (*Reindexer)(nil)

// reindexPageSize bounds one store read during a rebuild.
const reindexPageSize = 500

// Reindexer rebuilds the search index from the metadata store. Superseded
// message versions are skipped; the rebuilt index only ever contains
// current versions.
type Reindexer struct {
	conversations driven.ConversationStore
	messages      driven.MessageStore
	index         driven.SearchIndex
	log           *zap.Logger
}

// NewReindexer creates a rebuild service. A nil logger is replaced with a
// no-op one.
func NewReindexer(
	conversations driven.ConversationStore,
	messages driven.MessageStore,
	index driven.SearchIndex,
	log *zap.Logger,
) *Reindexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reindexer{
		conversations: conversations,
		messages:      messages,
		index:         index,
		log:           log,
	}
}

// Rebuild walks every active conversation's current messages in position
// order and submits them to the index, committing per conversation.
func (r *Reindexer) Rebuild(ctx context.Context) (int, error) {
	active, err := r.conversations.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing conversations: %w", err)
	}

	total := 0
	for _, conv := range active {
		indexed, err := r.rebuildConversation(ctx, conv.ID)
		if err != nil {
			return total, fmt.Errorf("rebuilding conversation %d: %w", conv.ID, err)
		}
		total += indexed
		r.log.Info("conversation reindexed",
			zap.Int64("conversation", conv.ID),
			zap.Int("documents", indexed))
	}
	return total, nil
}

func (r *Reindexer) rebuildConversation(ctx context.Context, conversationID int64) (int, error) {
	indexed := 0
	after := int64(0)
	for {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		page, err := r.messages.ListCurrent(ctx, conversationID, after, reindexPageSize)
		if err != nil {
			return indexed, fmt.Errorf("listing messages after %d: %w", after, err)
		}
		if len(page) == 0 {
			break
		}

		for idx := range page {
			if err := r.index.Submit(ctx, indexDocument(&page[idx])); err != nil {
				return indexed, fmt.Errorf("submitting message %s: %w", page[idx].ID, err)
			}
			indexed++
		}
		after = page[len(page)-1].Position
	}

	if err := r.index.Commit(ctx); err != nil {
		return indexed, err
	}
	return indexed, nil
}
