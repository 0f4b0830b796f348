package ado

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy removes every tag, leaving only text content.
var stripPolicy = bluemonday.StrictPolicy()

// HTMLToPlainText renders a rich-text comment body as plain text: tags are
// stripped, entities decoded, non-breaking spaces normalized and runs of
// whitespace collapsed to single spaces.
func HTMLToPlainText(fragment string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(fragment))
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.Join(strings.Fields(text), " ")
}
