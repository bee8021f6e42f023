package media

import (
	"bytes"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

// MIME types used by the sniffer and the canonical outputs.
const (
	mimeJPEG   = "image/jpeg"
	mimePNG    = "image/png"
	mimeGIF    = "image/gif"
	mimeWebP   = "image/webp"
	mimeTGS    = "application/x-tgsticker"
	mimeLottie = "application/json"
	mimeRaw    = "application/octet-stream"
)

// Sniff detects the format family and MIME type from content. The
// declared hint a caller may hold is deliberately not an input: mislabeled
// blobs are dispatched on what they actually are.
func Sniff(b []byte) (domain.MediaFamily, string) {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return domain.FamilyRaster, mimeJPEG

	case len(b) >= 8 && bytes.Equal(b[:8], []byte("\x89PNG\r\n\x1a\n")):
		return domain.FamilyRaster, mimePNG

	case len(b) >= 6 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a"))):
		// Single-frame GIFs ride the animated arm and come out as a
		// one-frame loop.
		return domain.FamilyAnimated, mimeGIF

	case len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		if webpAnimated(b) {
			return domain.FamilyAnimated, mimeWebP
		}
		return domain.FamilyRaster, mimeWebP

	case len(b) >= 2 && b[0] == 0x1F && b[1] == 0x8B:
		// Gzip container: treated as a compressed lottie sticker and
		// validated during decode.
		return domain.FamilyVector, mimeTGS

	case looksLikeJSON(b):
		return domain.FamilyVector, mimeLottie

	default:
		return domain.FamilyUnknown, mimeRaw
	}
}

// webpAnimated checks the ANIM flag of a VP8X extended header.
func webpAnimated(b []byte) bool {
	if len(b) < 21 || !bytes.Equal(b[12:16], []byte("VP8X")) {
		return false
	}
	return b[20]&0x02 != 0
}

func looksLikeJSON(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
