package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/transcript"
)

const documentTimeLayout = "2006-01-02 15:04:05"

// FormatDocumentText renders a document as plain text with each original line
// followed by its translation.
func FormatDocumentText(doc repository.Document, loc *time.Location) string {
	loc = safeLocation(loc)
	lines := []string{
		doc.Title,
		fmt.Sprintf("Date: %s (%s)", doc.CreatedAt.In(loc).Format(documentTimeLayout), loc.String()),
	}
	if doc.SourceLanguage != "" {
		lines = append(lines, fmt.Sprintf("Languages: %s -> %s", doc.SourceLanguage, doc.TargetLanguage))
	}
	lines = append(lines, "", "Summary:", doc.Summary, "", "Transcript:")

	originals := transcript.SplitLines(doc.RawText)
	translated := transcript.SplitLines(doc.TranslatedText)
	for i := range max(len(originals), len(translated)) {
		if i < len(originals) {
			lines = append(lines, strings.TrimSpace(originals[i]))
		}
		if i < len(translated) {
			lines = append(lines, "  "+strings.TrimSpace(translated[i]))
		}
	}
	return strings.Join(lines, "\n")
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
