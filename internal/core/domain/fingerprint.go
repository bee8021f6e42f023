package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode"
)

// Fingerprint derives the stable content hash of a raw record: normalized
// text plus the digest of every attached blob. Two records with an equal
// fingerprint within one conversation are the same logical message.
func Fingerprint(r *RawRecord) string {
	h := sha256.New()

	var pos [8]byte
	binary.BigEndian.PutUint64(pos[:], uint64(r.ConversationID))
	h.Write(pos[:])

	h.Write([]byte(NormalizeText(r.Text)))
	h.Write([]byte{0})
	h.Write([]byte(r.Author))
	h.Write([]byte{0})

	for _, m := range r.Media {
		sum := sha256.Sum256(m.Bytes)
		h.Write(sum[:])
	}

	return hex.EncodeToString(h.Sum(nil))
}

// MediaDigest returns the hex SHA-256 of a raw blob.
func MediaDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NormalizeText collapses runs of whitespace to single spaces and trims
// the ends so that insignificant formatting differences do not defeat
// dedup.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
