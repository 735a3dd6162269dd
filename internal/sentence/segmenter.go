// Package sentence implements the segmenter that turns a live LLM token
// stream into complete sentences, so TTS on sentence N can start while the
// model is still generating sentence N+1.
package sentence

import "strings"

// minVisibleChars is the shortest buffer the segmenter will emit as a
// sentence; it prevents firing on a lone terminal punctuation mark.
const minVisibleChars = 4

// enders is the full set of sentence-terminal runes, CJK and ASCII.
var enders = map[rune]bool{
	'。': true, '！': true, '？': true,
	'.': true, '!': true, '?': true,
	'；': true, ';': true, '\n': true,
}

// Segmenter accumulates streamed tokens and splits at sentence boundaries.
// It is an append-only buffer with a cursor: restartable but not seekable.
type Segmenter struct {
	buf strings.Builder
}

// Add appends a token and returns every complete sentence now ready for
// TTS, in order. A single token can complete more than one sentence (a
// provider may deliver several sentences in one delta), so this drains
// all boundaries present in the buffer rather than just the first.
// Returns nil if no boundary has been reached yet.
func (s *Segmenter) Add(token string) []string {
	s.buf.WriteString(token)

	var out []string
	for {
		text := s.buf.String()
		complete, remainder, ok := splitAtSentence(text)
		if !ok {
			break
		}
		s.buf.Reset()
		s.buf.WriteString(remainder)
		out = append(out, complete)
	}
	return out
}

// Flush returns any remaining buffered text as a final sentence, per spec:
// the token stream signalling completion flushes the residual even if
// unterminated. Returns ("", false) if nothing is buffered.
func (s *Segmenter) Flush() (string, bool) {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if text == "" {
		return "", false
	}
	return text, true
}

// splitAtSentence finds the first sentence boundary in text: a terminal
// rune at which at least minVisibleChars visible runes have been seen,
// the terminal rune itself included.
// Returns (sentence, remainder, true) on a boundary, ("", text, false)
// otherwise. Callers needing every boundary in text must re-invoke this
// on the remainder, since a single chunk can contain multiple sentences.
func splitAtSentence(text string) (string, string, bool) {
	runes := []rune(text)
	idx := -1
	visible := 0
	for i, r := range runes {
		if !isSpace(r) {
			visible++
		}
		if enders[r] && visible >= minVisibleChars {
			idx = i + 1
			break
		}
	}
	if idx < 0 {
		return "", text, false
	}
	sentence := strings.TrimSpace(string(runes[:idx]))
	if sentence == "" {
		return "", text, false
	}
	return sentence, string(runes[idx:]), true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
