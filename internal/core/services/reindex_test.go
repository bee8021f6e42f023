package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helian-labs/chatvault/internal/adapters/driven/storage/memory"
	"github.com/helian-labs/chatvault/internal/core/domain"
)

func TestRebuildIndexesCurrentMessages(t *testing.T) {
	ctx := context.Background()
	conversations := memory.NewConversationStore()
	media := memory.NewMediaStore()
	messages := memory.NewMessageStore(media)
	require.NoError(t, conversations.Save(ctx, &domain.Conversation{
		ID: 1, Title: "chat", Kind: domain.KindGroup, Active: true,
	}))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for p, id := range map[int64]string{1: "m-1", 2: "m-2", 3: "m-3"} {
		require.NoError(t, messages.SaveMessage(ctx, &domain.Message{
			ID:             id,
			ConversationID: 1,
			Position:       p,
			Author:         "ada",
			Timestamp:      base.Add(time.Duration(p) * time.Minute),
			Text:           "text " + id,
			Fingerprint:    "fp-" + id,
		}, nil))
	}
	// m-2 was edited; its replacement m-2b is the current version.
	require.NoError(t, messages.SaveMessage(ctx, &domain.Message{
		ID: "m-2b", ConversationID: 1, Position: 2, Author: "ada",
		Timestamp: base, Text: "edited", Fingerprint: "fp-m-2b",
	}, nil))
	require.NoError(t, messages.Supersede(ctx, "m-2", "m-2b"))

	index := newFakeIndex()
	indexed, err := NewReindexer(conversations, messages, index, nil).Rebuild(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, indexed)
	assert.Equal(t, 3, index.committedCount())
	for _, id := range []string{"m-1", "m-2b", "m-3"} {
		assert.True(t, index.hasCommitted(id), "expected %s in rebuilt index", id)
	}
	assert.False(t, index.hasCommitted("m-2"), "superseded version must not be reindexed")
}

func TestRebuildSkipsInactiveConversations(t *testing.T) {
	ctx := context.Background()
	conversations := memory.NewConversationStore()
	media := memory.NewMediaStore()
	messages := memory.NewMessageStore(media)
	require.NoError(t, conversations.Save(ctx, &domain.Conversation{
		ID: 5, Title: "muted", Kind: domain.KindChannel, Active: false,
	}))
	require.NoError(t, messages.SaveMessage(ctx, &domain.Message{
		ID: "m-5", ConversationID: 5, Position: 1, Author: "ada",
		Timestamp: time.Now().UTC(), Text: "hidden", Fingerprint: "fp-5",
	}, nil))

	index := newFakeIndex()
	indexed, err := NewReindexer(conversations, messages, index, nil).Rebuild(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, indexed)
	assert.Equal(t, 0, index.committedCount())
}
