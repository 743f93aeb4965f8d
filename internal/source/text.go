package source

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stripMarkup extracts visible text from an HTML fragment. Plain text
// (no angle brackets) skips the parser entirely and only gets entities
// unescaped and whitespace collapsed.
func stripMarkup(value string) string {
	if value == "" {
		return ""
	}
	if !strings.ContainsAny(value, "<>") {
		return collapseWhitespace(html.UnescapeString(value))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return collapseWhitespace(html.UnescapeString(value))
	}
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes bounds s to max runes. Titles and summaries are stored
// with hard length caps.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
