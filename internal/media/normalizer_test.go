package media

import (
	"bytes"
	"compress/gzip"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

func testNormalizer(t *testing.T, budgets Budgets) *Normalizer {
	t.Helper()
	return NewNormalizer(budgets, zap.NewNop())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func gifBytes(t *testing.T, frames int) []byte {
	t.Helper()
	g := &gif.GIF{LoopCount: 0}
	for i := 0; i < frames; i++ {
		pal := image.NewPaletted(image.Rect(0, 0, 8, 8), color.Palette{
			color.Black, color.White,
		})
		pal.SetColorIndex(i%8, 0, 1)
		g.Image = append(g.Image, pal)
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

const minimalLottie = `{
	"w": 100, "h": 100, "fr": 30, "ip": 0, "op": 10,
	"layers": [{
		"ty": 4,
		"shapes": [{
			"ty": "gr",
			"it": [
				{"ty": "sh", "ks": {"a": 0, "k": {
					"c": true,
					"v": [[10,10],[90,10],[90,90],[10,90]],
					"i": [[0,0],[0,0],[0,0],[0,0]],
					"o": [[0,0],[0,0],[0,0],[0,0]]
				}}},
				{"ty": "fl", "c": {"a": 0, "k": [1, 0, 0, 1]}, "o": {"a": 0, "k": 100}}
			]
		}]
	}]
}`

func tgsBytes(t *testing.T, jsonBody string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(jsonBody))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestNormalizeStaticPNG(t *testing.T) {
	n := testNormalizer(t, DefaultBudgets())

	asset, out, err := n.Normalize(context.Background(), pngBytes(t, 32, 16), "image/png")
	require.NoError(t, err)
	assert.Equal(t, domain.MediaNormalized, asset.Status)
	assert.Equal(t, "image/png", asset.OriginalFormat)
	assert.Equal(t, "image/png", asset.CanonicalFormat)
	assert.Equal(t, int64(len(out)), asset.ByteSize)
	assert.NotEmpty(t, asset.Digest)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 32, cfg.Width)
}

func TestNormalizeJPEGIgnoresWrongHint(t *testing.T) {
	n := testNormalizer(t, DefaultBudgets())

	// Declared as GIF, actually JPEG: the sniffed format wins.
	asset, _, err := n.Normalize(context.Background(), jpegBytes(t, 10, 10), "image/gif")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", asset.OriginalFormat)
	assert.Equal(t, "image/png", asset.CanonicalFormat)
}

func TestNormalizeCapsDimensions(t *testing.T) {
	budgets := DefaultBudgets()
	budgets.MaxDim = 16
	n := testNormalizer(t, budgets)

	_, out, err := n.Normalize(context.Background(), pngBytes(t, 64, 32), "")
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
}

func TestNormalizeRejectsPixelBomb(t *testing.T) {
	budgets := DefaultBudgets()
	budgets.MaxPixels = 100
	n := testNormalizer(t, budgets)

	asset, _, err := n.Normalize(context.Background(), pngBytes(t, 50, 50), "")
	require.Error(t, err)
	var derr *domain.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.MediaFailed, asset.Status)
	assert.Contains(t, asset.FailReason, "ceiling")
}

func TestNormalizeAnimatedGIF(t *testing.T) {
	n := testNormalizer(t, DefaultBudgets())

	asset, out, err := n.Normalize(context.Background(), gifBytes(t, 3), "image/gif")
	require.NoError(t, err)
	assert.Equal(t, "image/gif", asset.CanonicalFormat)

	g, err := gif.DecodeAll(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, g.Image, 3)
	assert.Equal(t, 0, g.LoopCount)
}

func TestNormalizeAnimatedFrameCap(t *testing.T) {
	budgets := DefaultBudgets()
	budgets.MaxFrames = 2
	n := testNormalizer(t, budgets)

	_, out, err := n.Normalize(context.Background(), gifBytes(t, 5), "")
	require.NoError(t, err)

	g, err := gif.DecodeAll(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
}

func TestNormalizeVectorSticker(t *testing.T) {
	n := testNormalizer(t, DefaultBudgets())

	asset, out, err := n.Normalize(context.Background(), tgsBytes(t, minimalLottie), "application/x-tgsticker")
	require.NoError(t, err)
	assert.Equal(t, "application/x-tgsticker", asset.OriginalFormat)
	assert.Equal(t, "image/png", asset.CanonicalFormat)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	// The filled square covers the canvas center.
	_, _, _, a := img.At(128, 128).RGBA()
	assert.NotZero(t, a, "fill should cover the center pixel")
}

func TestNormalizeCorruptInputsNeverPanic(t *testing.T) {
	n := testNormalizer(t, DefaultBudgets())

	corrupt := [][]byte{
		nil,
		{},
		[]byte("\xFF\xD8\xFF"),               // truncated jpeg
		[]byte("\x89PNG\r\n\x1a\x00garbage"), // mangled png signature tail
		append(pngBytes(t, 4, 4)[:20], 0xFF, 0xEE), // truncated png
		[]byte("GIF89agarbage"),                    // truncated gif
		[]byte("\x1f\x8bnot actually gzip"),        // broken gzip
		tgsBytes(t, `{"w": -1, "h": 0}`),           // implausible canvas
		tgsBytes(t, `{not json`),                   // malformed json
		[]byte("random bytes that match nothing at"),
	}

	for i, blob := range corrupt {
		asset, _, err := n.Normalize(context.Background(), blob, "")
		require.Error(t, err, "blob %d should fail", i)
		require.NotNil(t, asset, "blob %d should still yield an asset", i)
		assert.Equal(t, domain.MediaFailed, asset.Status, "blob %d", i)
		assert.NotEmpty(t, asset.FailReason, "blob %d", i)
	}
}

func TestNormalizeInputByteCeiling(t *testing.T) {
	budgets := DefaultBudgets()
	budgets.MaxInputBytes = 64
	n := testNormalizer(t, budgets)

	asset, _, err := n.Normalize(context.Background(), pngBytes(t, 100, 100), "")
	require.Error(t, err)
	assert.Equal(t, domain.MediaFailed, asset.Status)
}

func TestNormalizeVectorBudgetTimeout(t *testing.T) {
	budgets := DefaultBudgets()
	budgets.RenderBudget = time.Nanosecond
	n := testNormalizer(t, budgets)

	asset, _, err := n.Normalize(context.Background(), tgsBytes(t, minimalLottie), "")
	require.Error(t, err)
	assert.Equal(t, domain.MediaFailed, asset.Status)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		family domain.MediaFamily
		format string
	}{
		{"png", pngBytes(t, 2, 2), domain.FamilyRaster, "image/png"},
		{"jpeg", jpegBytes(t, 2, 2), domain.FamilyRaster, "image/jpeg"},
		{"gif", gifBytes(t, 1), domain.FamilyAnimated, "image/gif"},
		{"tgs", tgsBytes(t, minimalLottie), domain.FamilyVector, "application/x-tgsticker"},
		{"lottie json", []byte(`  {"w":1}`), domain.FamilyVector, "application/json"},
		{"unknown", []byte("plain text"), domain.FamilyUnknown, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, format := Sniff(tt.data)
			assert.Equal(t, tt.family, family)
			assert.Equal(t, tt.format, format)
		})
	}
}
