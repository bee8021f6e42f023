package analysis

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// redactionMask replaces redacted spans in snippets. Fixed width so the
// mask does not leak the span length.
const redactionMask = "███"

// Snippet builds a highlight window around the first query-term match in
// text. Query terms are wrapped in ** markers; spans matching redact
// patterns are masked. maxChars bounds the window in runes.
func (p *Pipeline) Snippet(text string, queryTerms []string, maxChars int) string {
	if maxChars <= 0 || text == "" {
		return ""
	}

	f := fold(text)

	type span struct {
		start, end int
		redact     bool
	}
	var spans []span

	for _, term := range queryTerms {
		folded := FoldTerm(term)
		if folded == "" {
			continue
		}
		for pos := 0; ; {
			idx := strings.Index(f.text[pos:], folded)
			if idx < 0 {
				break
			}
			start, end := f.span(pos+idx, pos+idx+len(folded))
			spans = append(spans, span{start: start, end: end})
			pos += idx + len(folded)
		}
	}

	if p.matcher != nil {
		for _, s := range p.matcher.Spans(text) {
			if s.Redact {
				spans = append(spans, span{start: s.Start, end: s.End, redact: true})
			}
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	// Window around the first highlight, or the head of the text.
	anchor := 0
	for _, s := range spans {
		if !s.redact {
			anchor = s.start
			break
		}
	}
	winStart, winEnd := window(text, anchor, maxChars)

	var b strings.Builder
	pos := winStart
	for _, s := range spans {
		if s.start < pos || s.start >= winEnd {
			continue
		}
		end := s.end
		if end > winEnd {
			end = winEnd
		}
		b.WriteString(text[pos:s.start])
		if s.redact {
			b.WriteString(redactionMask)
		} else {
			b.WriteString("**")
			b.WriteString(text[s.start:end])
			b.WriteString("**")
		}
		pos = end
	}
	b.WriteString(text[pos:winEnd])

	out := b.String()
	if winStart > 0 {
		out = "…" + out
	}
	if winEnd < len(text) {
		out += "…"
	}
	return out
}

// window returns rune-aligned byte bounds of a maxChars-rune window of
// text that contains anchor, preferring to center it.
func window(text string, anchor, maxChars int) (int, int) {
	if utf8.RuneCountInString(text) <= maxChars {
		return 0, len(text)
	}

	// Walk back maxChars/2 runes from the anchor.
	start := anchor
	for i := 0; i < maxChars/2 && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}

	end := start
	for i := 0; i < maxChars && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	return start, end
}
