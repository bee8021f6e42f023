package media

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Budgets are the resource ceilings every decode path enforces.
type Budgets struct {
	// MaxInputBytes rejects oversized blobs before any decoding. Also
	// bounds the decompressed size of gzip-wrapped stickers.
	MaxInputBytes int

	// MaxPixels is the width*height ceiling checked from the header
	// before the pixel data is decoded.
	MaxPixels int

	// MaxDim caps the longest output edge of static rasters.
	MaxDim int

	// StickerSize is the square canvas vector stickers render onto.
	StickerSize int

	// MaxFrames caps animated frame counts.
	MaxFrames int

	// RenderBudget time-boxes one vector render. Exceeding it fails the
	// asset, never the pipeline.
	RenderBudget time.Duration
}

// DefaultBudgets mirrors the limits the archive has always shipped with.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxInputBytes: 10 << 20,
		MaxPixels:     25_000_000,
		MaxDim:        2048,
		StickerSize:   256,
		MaxFrames:     64,
		RenderBudget:  2 * time.Second,
	}
}

// Ensure Normalizer implements the port.
var _ driven.MediaNormalizer = (*Normalizer)(nil)

// Normalizer converts raw blobs into canonical assets.
type Normalizer struct {
	budgets Budgets
	log     *zap.Logger
}

// NewNormalizer creates a normalizer with the given budgets.
func NewNormalizer(budgets Budgets, log *zap.Logger) *Normalizer {
	return &Normalizer{budgets: budgets, log: log}
}

// Normalize sniffs, decodes and re-encodes one blob. On failure the
// returned asset has status Failed and the error is a *domain.DecodeError;
// the caller archives the asset either way.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, mimeHint string) (asset *domain.MediaAsset, out []byte, err error) {
	family, format := Sniff(raw)

	// Decoders are not trusted with adversarial input either: a panic in
	// any decode path downgrades to a failed asset.
	defer func() {
		if r := recover(); r != nil {
			n.log.Warn("media decode panic",
				zap.String("format", format), zap.Any("panic", r))
			derr := &domain.DecodeError{Format: format, Reason: fmt.Sprintf("decoder panic: %v", r)}
			asset, out, err = n.failed(raw, format, derr), nil, derr
		}
	}()

	if mimeHint != "" && mimeHint != format {
		n.log.Debug("media hint disagrees with sniffed format",
			zap.String("hint", mimeHint), zap.String("sniffed", format))
	}

	if len(raw) == 0 {
		derr := &domain.DecodeError{Reason: "empty input"}
		return n.failed(raw, format, derr), nil, derr
	}
	if len(raw) > n.budgets.MaxInputBytes {
		derr := &domain.DecodeError{Format: format, Reason: "input exceeds byte ceiling"}
		return n.failed(raw, format, derr), nil, derr
	}

	var canonical string
	switch family {
	case domain.FamilyRaster:
		out, err = n.normalizeRaster(raw)
		canonical = mimePNG
	case domain.FamilyAnimated:
		out, err = n.normalizeAnimated(raw, format)
		canonical = mimeGIF
	case domain.FamilyVector:
		out, err = n.normalizeVector(ctx, raw, format)
		canonical = mimePNG
	default:
		err = &domain.DecodeError{Reason: "unrecognized format"}
	}
	if err != nil {
		return n.failed(raw, format, err), nil, err
	}

	return &domain.MediaAsset{
		ID:              uuid.NewString(),
		OriginalFormat:  format,
		CanonicalFormat: canonical,
		ByteSize:        int64(len(out)),
		Digest:          domain.MediaDigest(raw),
		Status:          domain.MediaNormalized,
		CreatedAt:       time.Now().UTC(),
	}, out, nil
}

func (n *Normalizer) failed(raw []byte, format string, cause error) *domain.MediaAsset {
	return &domain.MediaAsset{
		ID:             uuid.NewString(),
		OriginalFormat: format,
		ByteSize:       int64(len(raw)),
		Digest:         domain.MediaDigest(raw),
		Status:         domain.MediaFailed,
		FailReason:     cause.Error(),
		CreatedAt:      time.Now().UTC(),
	}
}
