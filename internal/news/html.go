package news

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML reduces a fragment with markup to its visible text. Text without
// a tag is returned unchanged.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
