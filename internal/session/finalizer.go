package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/llm"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/transcript"
	"github.com/foxseedlab/tsuyaku/internal/translation"
	"github.com/google/uuid"
)

const (
	shortTextWordLimit = 15
	noteDateLayout     = "2006-01-02"

	summaryTooShort    = "Text too short for summary generation."
	summaryUnavailable = "Summary could not be generated."
	summaryMissing     = "Summary not available."
)

// Finalizer turns the snapshot of a stopped recording into a document. It never
// fails: summarization problems degrade to default title and summary.
type Finalizer struct {
	summarizer llm.Summarizer
	loc        *time.Location
	timeout    time.Duration
}

func NewFinalizer(summarizer llm.Summarizer, loc *time.Location, timeout time.Duration) *Finalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Finalizer{summarizer: summarizer, loc: loc, timeout: timeout}
}

// Finalize returns nil when the transcript is empty.
func (f *Finalizer) Finalize(ctx context.Context, snap transcript.Snapshot, now time.Time) *repository.Document {
	if strings.TrimSpace(snap.RawText) == "" {
		return nil
	}

	text := snap.RawText
	language := snap.SourceLanguage
	if strings.TrimSpace(snap.TranslatedText) != "" {
		text = snap.TranslatedText
		language = snap.TargetLanguage
	}

	summary := f.summarize(ctx, text, language, now)
	return &repository.Document{
		ID:               newDocumentID(),
		Title:            summary.Title,
		FormattedContent: summary.FormattedText,
		Summary:          summary.Summary,
		RawText:          snap.RawText,
		TranslatedText:   snap.TranslatedText,
		SourceLanguage:   snap.SourceLanguage,
		TargetLanguage:   snap.TargetLanguage,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (f *Finalizer) summarize(ctx context.Context, text, language string, now time.Time) llm.Summary {
	title := f.defaultTitle(now)
	if len(strings.Fields(text)) < shortTextWordLimit {
		return llm.Summary{Title: title, FormattedText: text, Summary: summaryTooShort}
	}
	fallback := llm.Summary{Title: title, FormattedText: text, Summary: summaryUnavailable}
	if f.summarizer == nil {
		slog.Warn("summarization skipped; no summarizer configured", "error_code", ErrorConfiguration)
		return fallback
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	s, err := f.summarizer.Summarize(ctx, llm.SummaryRequest{Text: text, Language: translation.LanguageName(language)})
	if err != nil {
		code := ErrorSummarization
		if errors.Is(err, llm.ErrMissingCredential) {
			code = ErrorConfiguration
		}
		slog.Warn("summarization failed; using default title and summary", "error_code", code, "error", err)
		return fallback
	}

	if strings.TrimSpace(s.Title) == "" {
		s.Title = title
	}
	if strings.TrimSpace(s.FormattedText) == "" {
		s.FormattedText = text
	}
	if strings.TrimSpace(s.Summary) == "" {
		s.Summary = summaryMissing
	}
	return s
}

func (f *Finalizer) defaultTitle(now time.Time) string {
	return "Note: " + now.In(f.loc).Format(noteDateLayout)
}

// newDocumentID returns a time ordered UUIDv7.
func newDocumentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
