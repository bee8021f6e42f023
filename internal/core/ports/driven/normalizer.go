package driven

import (
	"context"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// MediaNormalizer converts an untrusted media blob into a canonical
// delivery format. The declared MIME hint is advisory; the implementation
// sniffs the actual format from content.
//
// A decode failure returns the asset with status Failed alongside the
// *domain.DecodeError; the caller archives the Failed asset and continues.
type MediaNormalizer interface {
	Normalize(ctx context.Context, raw []byte, mimeHint string) (*domain.MediaAsset, []byte, error)
}
