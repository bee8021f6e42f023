package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

func TestMessageStoreSaveGetAndDedup(t *testing.T) {
	media := NewMediaStore()
	store := NewMessageStore(media)
	ctx := context.Background()

	msg := &domain.Message{
		ID:             "m1",
		ConversationID: 1,
		Position:       10,
		Author:         "ada",
		Text:           "hello",
		Fingerprint:    "fp1",
	}
	require.NoError(t, store.SaveMessage(ctx, msg, nil))

	got, err := store.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)

	dup := &domain.Message{
		ID:             "m2",
		ConversationID: 1,
		Position:       11,
		Fingerprint:    "fp1",
	}
	assert.ErrorIs(t, store.SaveMessage(ctx, dup, nil), domain.ErrDuplicate)
	assert.Equal(t, 1, store.Count())
}

func TestMessageStoreSaveStoresAssets(t *testing.T) {
	media := NewMediaStore()
	store := NewMessageStore(media)
	ctx := context.Background()

	asset := domain.MediaAsset{
		ID:              "a1",
		Digest:          "d1",
		CanonicalFormat: "image/png",
		Status:          domain.MediaNormalized,
	}
	msg := &domain.Message{
		ID:             "m1",
		ConversationID: 1,
		Position:       10,
		Fingerprint:    "fp1",
		MediaRefs:      []string{"a1"},
	}
	require.NoError(t, store.SaveMessage(ctx, msg, []domain.MediaAsset{asset}))

	stored, err := media.GetAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "d1", stored.Digest)

	found, err := media.FindByDigest(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "a1", found.ID)
}

func TestMessageStoreSupersede(t *testing.T) {
	store := NewMessageStore(NewMediaStore())
	ctx := context.Background()

	first := &domain.Message{ID: "m1", ConversationID: 1, Position: 10, Fingerprint: "fp1"}
	second := &domain.Message{ID: "m2", ConversationID: 1, Position: 10, Fingerprint: "fp2"}
	require.NoError(t, store.SaveMessage(ctx, first, nil))
	require.NoError(t, store.SaveMessage(ctx, second, nil))

	require.NoError(t, store.Supersede(ctx, "m1", "m2"))

	current, err := store.FindCurrentAtPosition(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "m2", current.ID)

	old, err := store.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, old.Current())
}

func TestCursorStoreAdvanceIsStrictlyMonotonic(t *testing.T) {
	store := NewCursorStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Advance(ctx, 1, 50, now))

	var outOfOrder *domain.OutOfOrderError
	assert.ErrorAs(t, store.Advance(ctx, 1, 50, now), &outOfOrder)
	assert.ErrorAs(t, store.Advance(ctx, 1, 49, now), &outOfOrder)

	require.NoError(t, store.Advance(ctx, 1, 51, now))
	cursor, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(51), cursor.Position)
}

func TestMediaStoreBytesRoundTrip(t *testing.T) {
	media := NewMediaStore()
	store := NewMessageStore(media)
	ctx := context.Background()

	asset := domain.MediaAsset{ID: "a1", Digest: "d1", CanonicalFormat: "image/gif"}
	msg := &domain.Message{ID: "m1", ConversationID: 1, Position: 1, Fingerprint: "fp1", MediaRefs: []string{"a1"}}
	require.NoError(t, store.SaveMessage(ctx, msg, []domain.MediaAsset{asset}))

	require.NoError(t, media.PutBytes(ctx, "a1", []byte{9, 9}))
	data, format, err := media.GetBytes(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, data)
	assert.Equal(t, "image/gif", format)

	assert.ErrorIs(t, media.PutBytes(ctx, "missing", nil), domain.ErrNotFound)
}
