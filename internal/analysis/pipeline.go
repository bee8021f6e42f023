package analysis

import (
	"fmt"
	"unicode"

	"github.com/go-ego/gse"
)

// TokenKind classifies pipeline output tokens.
type TokenKind int

const (
	// KindWord is a folded alphanumeric word.
	KindWord TokenKind = iota

	// KindCJK is a dictionary-segmented CJK word.
	KindCJK

	// KindKeyword is an extra token emitted for a configured pattern.
	KindKeyword
)

// Token is one analyzed term. Start and End are byte offsets into the
// original input; input[Start:End] is the exact surface text.
type Token struct {
	Term  string
	Start int
	End   int
	Kind  TokenKind
}

// Pipeline composes folding, CJK segmentation and keyword matching.
// Safe for concurrent use once constructed.
type Pipeline struct {
	seg     gse.Segmenter
	matcher *Matcher
}

// NewPipeline loads the segmentation dictionary and wires the keyword
// matcher. The matcher may be nil when no pattern set is configured.
func NewPipeline(matcher *Matcher) (*Pipeline, error) {
	p := &Pipeline{matcher: matcher}
	if err := p.seg.LoadDict(); err != nil {
		return nil, fmt.Errorf("load segmenter dictionary: %w", err)
	}
	return p, nil
}

// Matcher exposes the pipeline's keyword matcher, nil when unset.
func (p *Pipeline) Matcher() *Matcher { return p.matcher }

// Analyze tokenizes text. Deterministic and restartable per document.
func (p *Pipeline) Analyze(text string) []Token {
	f := fold(text)
	tokens := p.baseTokens(&f)

	if p.matcher != nil {
		for _, m := range p.matcher.find(f.text) {
			start, end := f.span(m.foldStart, m.foldEnd)
			tokens = append(tokens, Token{
				Term:  m.pattern,
				Start: start,
				End:   end,
				Kind:  KindKeyword,
			})
		}
	}

	return tokens
}

// baseTokens splits the folded text into alphanumeric and CJK runs, then
// hands CJK runs to the dictionary segmenter instead of indexing by single
// character or whole run.
func (p *Pipeline) baseTokens(f *foldedText) []Token {
	var tokens []Token
	runStart := -1
	runCJK := false

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		if runCJK {
			tokens = append(tokens, p.segmentCJK(f, runStart, end)...)
		} else {
			start, origEnd := f.span(runStart, end)
			tokens = append(tokens, Token{
				Term:  f.text[runStart:end],
				Start: start,
				End:   origEnd,
				Kind:  KindWord,
			})
		}
		runStart = -1
	}

	for i, r := range f.text {
		switch {
		case isCJK(r):
			if runStart >= 0 && !runCJK {
				flush(i)
			}
			if runStart < 0 {
				runStart, runCJK = i, true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if runStart >= 0 && runCJK {
				flush(i)
			}
			if runStart < 0 {
				runStart, runCJK = i, false
			}
		default:
			flush(i)
		}
	}
	flush(len(f.text))

	return tokens
}

// segmentCJK runs the dictionary segmenter over one folded CJK run and
// remaps segment offsets back to the original text.
func (p *Pipeline) segmentCJK(f *foldedText, runStart, runEnd int) []Token {
	run := f.text[runStart:runEnd]
	segs := p.seg.Segment([]byte(run))
	tokens := make([]Token, 0, len(segs))
	for _, s := range segs {
		term := s.Token().Text()
		if term == "" {
			continue
		}
		start, end := f.span(runStart+s.Start(), runStart+s.End())
		tokens = append(tokens, Token{Term: term, Start: start, End: end, Kind: KindCJK})
	}
	return tokens
}

// isCJK reports whether r belongs to a script segmented by dictionary
// rather than by word boundary.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
