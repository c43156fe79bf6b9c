// Package sanitize cleans free text that is stored with a run and later
// served to agents over MCP: run names and failure messages. It strips
// control characters, markup tags and code fences so stored text cannot
// smuggle instructions into an agent's context.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxTextLength is the maximum stored length of a failure message.
const MaxTextLength = 1000

// MaxNameLength is the maximum length of a run name.
const MaxNameLength = 80

var (
	// reXMLTag matches XML/HTML tags including attributes, self-closing
	// tags and processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reMarkdownHeading matches headings at the start of a line.
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)

	reTripleBacktick = regexp.MustCompile("```+")

	reWhitespace = regexp.MustCompile(`\s+`)

	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// Text cleans a failure message: control characters and tags are
// removed, headings and code fences defused, whitespace collapsed to
// single spaces and the result truncated to MaxTextLength.
func Text(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))

	if len(s) > MaxTextLength {
		s = s[:MaxTextLength] + "..."
	}
	return s
}

// RunName keeps only [a-zA-Z0-9-_./], turns spaces into hyphens,
// collapses repeated hyphens and underscores and enforces MaxNameLength.
func RunName(input string) string {
	if input == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range strings.TrimSpace(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '-', r == '_', r == '.', r == '/':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	s := reRepeatedHyphens.ReplaceAllString(b.String(), "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")

	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}
	return s
}

// stripControlChars removes ASCII control characters except newline and
// tab.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
