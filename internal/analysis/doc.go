// Package analysis implements the text analysis pipeline used by the
// search index and the snippet builder: Unicode case/accent folding, CJK
// word segmentation backed by a dictionary, and a single-pass multi-pattern
// keyword matcher for entity tokens, highlighting and redaction.
//
// The pipeline is a pure function of the input text and the loaded
// dictionaries; it keeps no cross-document state. All token offsets are
// byte offsets into the original input, so surface text can be sliced back
// out exactly for highlighting.
package analysis
