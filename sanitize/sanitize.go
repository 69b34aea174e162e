// Package sanitize strips markup from feed and incident text into
// plain, length-bounded strings. It only extracts text; embedded
// script or style content is discarded, never evaluated.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxLength bounds descriptions when no limit is configured.
const DefaultMaxLength = 200

// Ellipsis is appended when text is truncated.
const Ellipsis = "…"

// Options controls sanitization.
type Options struct {
	// MaxLength is the rune budget of the output; <= 0 means
	// DefaultMaxLength.
	MaxLength int
}

var (
	// Block-level closers and <br> become line breaks so "<p>a</p><p>b</p>"
	// does not collapse into "ab".
	blockTagRe = regexp.MustCompile(`(?i)<\s*(?:br\s*/?|/p|/div|/li|/ul|/ol|/h[1-6]|/tr|/table|/blockquote|/pre)\s*>`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	spaceRunRe = regexp.MustCompile(`[ \t\f\v]+`)
	lineRunRe  = regexp.MustCompile(`\s*\n\s*`)
)

// Text strips all markup from html, decodes entities, collapses
// whitespace, and truncates to the configured budget.
func Text(html string, opts Options) string {
	maxLen := opts.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	text := strip(html)
	text = collapse(text)
	return Truncate(text, maxLen)
}

// strip removes markup and decodes entities.
func strip(html string) string {
	withBreaks := blockTagRe.ReplaceAllString(html, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(withBreaks))
	if err != nil {
		// html.Parse almost never fails; fall back to a crude tag strip
		// so the no-markup guarantee still holds.
		return tagRe.ReplaceAllString(withBreaks, " ")
	}

	doc.Find("script, style").Remove()
	return doc.Text()
}

// collapse normalizes whitespace: runs of spaces become one space,
// runs containing a newline become one newline, edges are trimmed.
func collapse(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = lineRunRe.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most maxLen runes plus an ellipsis. The cut
// lands on the last whitespace boundary inside the final 20% of the
// budget so words are not split; when no boundary falls there, it
// hard-cuts at the budget.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	cut := maxLen
	floor := maxLen - maxLen/5
	for i := maxLen; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}

	return strings.TrimRight(string(runes[:cut]), " \n") + Ellipsis
}
