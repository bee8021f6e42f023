package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaGetCmd_Use(t *testing.T) {
	assert.Equal(t, "get [asset-id]", mediaGetCmd.Use)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".webp", extensionFor("image/webp"))
	assert.Equal(t, ".bin", extensionFor("application/octet-stream"))
}
