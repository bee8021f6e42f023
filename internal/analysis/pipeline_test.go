package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, patterns []Pattern) *Pipeline {
	t.Helper()
	var m *Matcher
	if patterns != nil {
		m = NewMatcher(patterns)
	}
	p, err := NewPipeline(m)
	require.NoError(t, err)
	return p
}

func TestAnalyzeLatin(t *testing.T) {
	p := newTestPipeline(t, nil)

	tokens := p.Analyze("Hello, Wörld 42")
	require.Len(t, tokens, 3)

	assert.Equal(t, "hello", tokens[0].Term)
	assert.Equal(t, "world", tokens[1].Term)
	assert.Equal(t, "42", tokens[2].Term)

	// Offsets slice the original surface text, folding notwithstanding.
	text := "Hello, Wörld 42"
	assert.Equal(t, "Hello", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "Wörld", text[tokens[1].Start:tokens[1].End])
	assert.Equal(t, "42", text[tokens[2].Start:tokens[2].End])
}

func TestAnalyzeCJKSegmentsWords(t *testing.T) {
	p := newTestPipeline(t, nil)

	text := "我们在北京大学见面"
	tokens := p.Analyze(text)
	require.NotEmpty(t, tokens)

	// Dictionary segmentation: neither one token per rune nor one giant
	// run token.
	assert.Greater(t, len(tokens), 1)
	runeCount := len([]rune(text))
	assert.Less(t, len(tokens), runeCount)

	for _, tok := range tokens {
		assert.Equal(t, KindCJK, tok.Kind)
		assert.Equal(t, tok.Term, text[tok.Start:tok.End])
	}
}

func TestAnalyzeMixedScriptOffsetsRoundTrip(t *testing.T) {
	p := newTestPipeline(t, []Pattern{{Text: "Búdget"}})

	text := "Q3 budget: 预算审批 due Friday"
	tokens := p.Analyze(text)
	require.NotEmpty(t, tokens)

	for _, tok := range tokens {
		require.LessOrEqual(t, tok.Start, tok.End)
		require.LessOrEqual(t, tok.End, len(text))
		surface := text[tok.Start:tok.End]
		assert.NotEmpty(t, surface, "token %q has empty surface", tok.Term)
	}

	// The configured keyword is found despite case/accent differences.
	var keyword *Token
	for i := range tokens {
		if tokens[i].Kind == KindKeyword {
			keyword = &tokens[i]
		}
	}
	require.NotNil(t, keyword, "expected a keyword token")
	assert.Equal(t, "budget", keyword.Term)
	assert.Equal(t, "budget", text[keyword.Start:keyword.End])
}

func TestAnalyzeDeterministic(t *testing.T) {
	p := newTestPipeline(t, nil)
	text := "repeat 重复 repeat"
	assert.Equal(t, p.Analyze(text), p.Analyze(text))
}

func TestAnalyzeEmpty(t *testing.T) {
	p := newTestPipeline(t, nil)
	assert.Empty(t, p.Analyze(""))
}

func TestFoldTerm(t *testing.T) {
	assert.Equal(t, "uber", FoldTerm("Über"))
	assert.Equal(t, "cafe", FoldTerm("Café"))
	assert.Equal(t, "北京", FoldTerm("北京"))
}

func TestSpanMapsBackToRuneBoundaries(t *testing.T) {
	f := fold("Àé中z")
	for i := range f.text {
		start, end := f.span(i, i+1)
		assert.LessOrEqual(t, start, end)
		assert.LessOrEqual(t, end, len("Àé中z"))
	}
}
