package providers

import (
	"regexp"
	"strings"
)

var (
	codeFilter       = regexp.MustCompile("(?s)```.*?```")
	inlineCodeFilter = regexp.MustCompile("`([^`]*)`")
	boldItalicFilter = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}`)
	headingFilter    = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	linkFilter       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// StripMarkdown removes code fences, inline code, emphasis markers,
// headings, and link syntax from text an LLM produced, leaving the
// natural-language content a TTS port should speak. Code fences are
// dropped entirely rather than read aloud.
func StripMarkdown(text string) string {
	text = codeFilter.ReplaceAllString(text, "")
	text = inlineCodeFilter.ReplaceAllString(text, "$1")
	text = boldItalicFilter.ReplaceAllString(text, "$1")
	text = headingFilter.ReplaceAllString(text, "")
	text = linkFilter.ReplaceAllString(text, "$1")
	return text
}

// NormalizeForSpeech collapses whitespace left behind by StripMarkdown and
// trims the result, so the sentence handed to a TTS port has no stray
// blank lines or repeated spaces.
func NormalizeForSpeech(text string) string {
	text = StripMarkdown(text)
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
