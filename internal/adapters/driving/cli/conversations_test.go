package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

func TestConversationsCmd_Use(t *testing.T) {
	assert.Equal(t, "conversations", conversationsCmd.Use)
}

func TestReindexCmd_Use(t *testing.T) {
	assert.Equal(t, "reindex", reindexCmd.Use)
}

func TestOutputConversations_Empty(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := conversationsCmd
	cmd.SetOut(buf)

	err := outputConversations(cmd, nil)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No conversations registered.")
}

func TestOutputConversations_Listing(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := conversationsCmd
	cmd.SetOut(buf)

	err := outputConversations(cmd, []domain.Conversation{
		{ID: 7, Title: "devops", Kind: domain.KindGroup, Active: true},
		{ID: 12, Kind: domain.KindChannel, Active: true},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "devops")
	assert.Contains(t, out, "channel")
	assert.Contains(t, out, "(untitled)")
}
