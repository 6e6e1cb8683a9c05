package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// assOverride matches inline SSA/ASS override blocks such as {\an8} or {\i1}.
var assOverride = regexp.MustCompile(`\{\\[^}]*\}`)

// PlainText strips HTML-like styling tags (<i>, <b>, <font ...>) and ASS
// override blocks from cue text, keeping line breaks.
func PlainText(text string) string {
	text = assOverride.ReplaceAllString(text, "")
	if !strings.ContainsAny(text, "<&") {
		return strings.TrimSpace(text)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(doc.Text())
}
