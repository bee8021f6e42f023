package media

import (
	"bytes"
	"image"
	_ "image/jpeg" // static raster decoders
	"image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // static webp decoder

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// normalizeRaster re-encodes a static image to PNG, downscaling so the
// longest edge fits the dimension cap.
func (n *Normalizer) normalizeRaster(raw []byte) ([]byte, error) {
	// Header-only pass: reject decompression-bomb shapes before the
	// pixel data is allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.DecodeError{Reason: "unreadable header: " + err.Error()}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &domain.DecodeError{Format: format, Reason: "degenerate dimensions"}
	}
	if cfg.Width*cfg.Height > n.budgets.MaxPixels {
		return nil, &domain.DecodeError{Format: format, Reason: "pixel count exceeds ceiling"}
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: err.Error()}
	}

	img := capDimensions(src, n.budgets.MaxDim)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: "re-encode: " + err.Error()}
	}
	return buf.Bytes(), nil
}

// capDimensions scales src down preserving aspect ratio so neither edge
// exceeds maxDim. Images already within the cap pass through untouched.
func capDimensions(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
