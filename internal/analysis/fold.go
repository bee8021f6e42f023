package analysis

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// foldedText is a case- and accent-folded copy of an input string plus the
// offset maps needed to translate folded byte offsets back to the
// original.
type foldedText struct {
	text string

	// starts[i] is the original byte offset of the rune that produced
	// folded byte i; ends[i] is the end offset of that rune.
	starts []int
	ends   []int
}

// fold lowercases the input and strips combining marks, tracking for every
// produced byte which original rune it came from. Offsets recovered
// through the maps always land on rune boundaries of the original text.
func fold(s string) foldedText {
	var b strings.Builder
	b.Grow(len(s))
	starts := make([]int, 0, len(s))
	ends := make([]int, 0, len(s))

	for i, r := range s {
		end := i + len(string(r))
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			low := unicode.ToLower(d)
			n := b.Len()
			b.WriteRune(low)
			for ; n < b.Len(); n++ {
				starts = append(starts, i)
				ends = append(ends, end)
			}
		}
	}

	return foldedText{text: b.String(), starts: starts, ends: ends}
}

// span translates a folded byte range to original offsets.
func (f *foldedText) span(foldStart, foldEnd int) (int, int) {
	if foldStart >= len(f.starts) || foldEnd <= foldStart {
		return 0, 0
	}
	if foldEnd > len(f.ends) {
		foldEnd = len(f.ends)
	}
	return f.starts[foldStart], f.ends[foldEnd-1]
}

// FoldTerm folds a single term the same way the pipeline folds documents,
// for query-side symmetry.
func FoldTerm(s string) string {
	return fold(s).text
}
