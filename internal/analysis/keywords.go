package analysis

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	ahocorasick "github.com/BobuSumisu/aho-corasick"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Pattern is one configured keyword or entity.
type Pattern struct {
	// Text is the surface form to match, folded at load time.
	Text string

	// Redact masks matched spans in result snippets instead of
	// highlighting them.
	Redact bool
}

// Span is a keyword occurrence in a document, in original byte offsets.
type Span struct {
	Start   int
	End     int
	Pattern string
	Redact  bool
}

type match struct {
	foldStart int
	foldEnd   int
	pattern   string
	redact    bool
}

// Matcher is a single-pass multi-pattern scanner (Aho-Corasick) over a
// configured pattern set. It serves double duty: emitting extra searchable
// tokens for known entities, and locating spans for highlighting and
// redaction. Reloadable; safe for concurrent use.
type Matcher struct {
	mu       sync.RWMutex
	trie     *ahocorasick.Trie
	patterns []Pattern
}

// NewMatcher builds a matcher over the given patterns.
func NewMatcher(patterns []Pattern) *Matcher {
	m := &Matcher{}
	m.replace(patterns)
	return m
}

// LoadMatcher reads a pattern file: one pattern per line, optionally
// followed by a tab and the word "redact". Blank lines and lines starting
// with '#' are skipped.
func LoadMatcher(path string) (*Matcher, error) {
	patterns, err := readPatternFile(path)
	if err != nil {
		return nil, err
	}
	return NewMatcher(patterns), nil
}

// Reload re-reads the pattern file and swaps the automaton in place.
func (m *Matcher) Reload(path string) error {
	patterns, err := readPatternFile(path)
	if err != nil {
		return err
	}
	m.replace(patterns)
	return nil
}

// Watch hot-reloads the matcher whenever the pattern file changes, until
// the context is cancelled.
func (m *Matcher) Watch(ctx context.Context, path string, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := m.Reload(path); err != nil {
					log.Warn("keyword pattern reload failed",
						zap.String("path", path), zap.Error(err))
					continue
				}
				log.Info("keyword patterns reloaded",
					zap.String("path", path), zap.Int("patterns", m.Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("keyword pattern watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Len returns the number of loaded patterns.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}

// Spans scans text and returns keyword occurrences in original byte
// offsets.
func (m *Matcher) Spans(text string) []Span {
	f := fold(text)
	found := m.find(f.text)
	spans := make([]Span, 0, len(found))
	for _, fm := range found {
		start, end := f.span(fm.foldStart, fm.foldEnd)
		spans = append(spans, Span{Start: start, End: end, Pattern: fm.pattern, Redact: fm.redact})
	}
	return spans
}

// find scans already-folded text.
func (m *Matcher) find(folded string) []match {
	m.mu.RLock()
	trie, patterns := m.trie, m.patterns
	m.mu.RUnlock()

	if trie == nil || len(patterns) == 0 {
		return nil
	}

	hits := trie.MatchString(folded)
	matches := make([]match, 0, len(hits))
	for _, h := range hits {
		p := patterns[h.Pattern()]
		start := int(h.Pos())
		matches = append(matches, match{
			foldStart: start,
			foldEnd:   start + len(p.Text),
			pattern:   p.Text,
			redact:    p.Redact,
		})
	}
	return matches
}

func (m *Matcher) replace(patterns []Pattern) {
	folded := make([]Pattern, 0, len(patterns))
	terms := make([]string, 0, len(patterns))
	for _, p := range patterns {
		text := FoldTerm(p.Text)
		if text == "" {
			continue
		}
		folded = append(folded, Pattern{Text: text, Redact: p.Redact})
		terms = append(terms, text)
	}

	var trie *ahocorasick.Trie
	if len(terms) > 0 {
		trie = ahocorasick.NewTrieBuilder().AddStrings(terms).Build()
	}

	m.mu.Lock()
	m.trie = trie
	m.patterns = folded
	m.mu.Unlock()
}

func readPatternFile(path string) ([]Pattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pattern file: %w", err)
	}
	defer file.Close()

	var patterns []Pattern
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		text, attr, _ := strings.Cut(line, "\t")
		patterns = append(patterns, Pattern{
			Text:   strings.TrimSpace(text),
			Redact: strings.TrimSpace(attr) == "redact",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pattern file: %w", err)
	}
	return patterns, nil
}
