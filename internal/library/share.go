package library

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/foxseedlab/tsuyaku/internal/repository"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

func StripTags(s string) string {
	return htmlTag.ReplaceAllString(s, "")
}

func shareBody(doc repository.Document) string {
	return StripTags(doc.FormattedContent) + "\n\nKey Takeaways:\n" + StripTags(doc.Summary)
}

// ShareText is the clipboard export of a document.
func ShareText(doc repository.Document) string {
	return doc.Title + "\n\n" + shareBody(doc)
}

// ShareMailto builds a mailto: link with the title as subject.
func ShareMailto(doc repository.Document) string {
	return "mailto:?subject=" + encodeURIComponent(doc.Title) + "&body=" + encodeURIComponent(shareBody(doc))
}

func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
