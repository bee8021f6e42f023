package media

import (
	"bytes"
	"image/gif"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// normalizeAnimated re-encodes a looped raster to GIF, preserving loop
// and per-frame timing metadata, with the frame count capped.
func (n *Normalizer) normalizeAnimated(raw []byte, format string) ([]byte, error) {
	if format == mimeWebP {
		// Animated WebP carries frames in ANMF chunks no pure-Go decoder
		// reads; the asset fails closed rather than shipping a broken
		// re-encode.
		return nil, &domain.DecodeError{Format: format, Reason: "animated webp frames not decodable"}
	}

	cfg, err := gif.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: "unreadable header: " + err.Error()}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &domain.DecodeError{Format: format, Reason: "degenerate dimensions"}
	}
	if cfg.Width*cfg.Height > n.budgets.MaxPixels {
		return nil, &domain.DecodeError{Format: format, Reason: "pixel count exceeds ceiling"}
	}

	g, err := gif.DecodeAll(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: err.Error()}
	}
	if len(g.Image) == 0 {
		return nil, &domain.DecodeError{Format: format, Reason: "no frames"}
	}

	if len(g.Image) > n.budgets.MaxFrames {
		g.Image = g.Image[:n.budgets.MaxFrames]
		g.Delay = g.Delay[:n.budgets.MaxFrames]
		if len(g.Disposal) >= n.budgets.MaxFrames {
			g.Disposal = g.Disposal[:n.budgets.MaxFrames]
		}
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, &domain.DecodeError{Format: format, Reason: "re-encode: " + err.Error()}
	}
	return buf.Bytes(), nil
}
