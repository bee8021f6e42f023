package domain

import "time"

// MediaStatus is the lifecycle state of a MediaAsset.
type MediaStatus string

const (
	MediaPending    MediaStatus = "pending"
	MediaNormalized MediaStatus = "normalized"
	MediaFailed     MediaStatus = "failed"
)

// MediaFamily is the detected format family a blob is dispatched on.
type MediaFamily string

const (
	// FamilyRaster is a static image (JPEG, PNG, static WebP).
	FamilyRaster MediaFamily = "raster"

	// FamilyAnimated is a looped raster sequence (animated GIF/WebP).
	FamilyAnimated MediaFamily = "animated"

	// FamilyVector is a vector animation (lottie-style sticker).
	FamilyVector MediaFamily = "vector"

	// FamilyUnknown is anything the sniffer could not classify.
	FamilyUnknown MediaFamily = "unknown"
)

// MediaAsset is a media blob normalized into a canonical delivery format.
// Referenced by messages via MediaRefs.
type MediaAsset struct {
	// ID is the stable internal identifier (UUID).
	ID string

	// OriginalFormat is the sniffed MIME type of the input.
	OriginalFormat string

	// CanonicalFormat is the MIME type of the normalized output, empty
	// when normalization failed.
	CanonicalFormat string

	// ByteSize is the size of the normalized output in bytes, or of the
	// input for failed assets.
	ByteSize int64

	// Digest is the SHA-256 of the original bytes, used in message
	// fingerprints and for asset-level dedup.
	Digest string

	// Status is Pending, Normalized or Failed.
	Status MediaStatus

	// FailReason records why normalization failed, empty otherwise.
	FailReason string

	// CreatedAt is when the asset was stored.
	CreatedAt time.Time
}
