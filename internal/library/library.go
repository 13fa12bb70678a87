package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/render"
	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/foxseedlab/tsuyaku/internal/transcript"
	"github.com/foxseedlab/tsuyaku/internal/webhook"
)

var ErrInvalidDocument = errors.New("invalid document")

// Edit holds user changes to a document. Nil fields are left untouched.
type Edit struct {
	Title            *string `json:"title,omitempty"`
	FormattedContent *string `json:"formattedContent,omitempty"`
	Summary          *string `json:"summary,omitempty"`
}

func (e Edit) Apply(doc *repository.Document) {
	if e.Title != nil {
		doc.Title = strings.TrimSpace(*e.Title)
	}
	if e.FormattedContent != nil {
		doc.FormattedContent = *e.FormattedContent
	}
	if e.Summary != nil {
		doc.Summary = *e.Summary
	}
}

// Service is the document library: saving, editing and deleting finished notes.
type Service struct {
	repo     repository.DocumentRepository
	sender   webhook.Sender
	loc      *time.Location
	timezone string
	now      func() time.Time
}

func NewService(repo repository.DocumentRepository, sender webhook.Sender, loc *time.Location, timezone string) *Service {
	return &Service{
		repo:     repo,
		sender:   sender,
		loc:      loc,
		timezone: timezone,
		now:      time.Now,
	}
}

// Save persists doc and notifies the webhook. Webhook failures are logged only.
func (s *Service) Save(ctx context.Context, doc repository.Document) (*repository.Document, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	now := s.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	slog.Info("document saved", "document_id", doc.ID, "title", doc.Title)
	s.notify(ctx, doc)
	return &doc, nil
}

// Update applies edit to a stored document. The id and creation time never change.
func (s *Service) Update(ctx context.Context, id string, edit Edit) (*repository.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	edit.Apply(doc)
	return s.Save(ctx, *doc)
}

func (s *Service) Get(ctx context.Context, id string) (*repository.Document, error) {
	return s.repo.GetDocument(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]repository.Document, error) {
	return s.repo.ListDocuments(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteDocument(ctx, id); err != nil {
		return err
	}
	slog.Info("document deleted", "document_id", id)
	return nil
}

// Text renders the plain text export used for attachments.
func (s *Service) Text(doc repository.Document) string {
	return render.FormatDocumentText(doc, s.loc)
}

func (s *Service) notify(ctx context.Context, doc repository.Document) {
	if s.sender == nil {
		return
	}
	if err := s.sender.SendDocument(ctx, s.webhookPayload(doc)); err != nil {
		slog.Warn("failed to send document webhook", "document_id", doc.ID, "error", err)
	}
}

func (s *Service) webhookPayload(doc repository.Document) webhook.DocumentWebhookPayload {
	loc := s.loc
	if loc == nil {
		loc = time.UTC
	}
	return webhook.DocumentWebhookPayload{
		SchemaVersion:    webhook.DocumentWebhookSchemaVersion,
		DocumentID:       doc.ID,
		Title:            doc.Title,
		Summary:          doc.Summary,
		FormattedContent: doc.FormattedContent,
		RawText:          doc.RawText,
		TranslatedText:   doc.TranslatedText,
		SourceLanguage:   doc.SourceLanguage,
		TargetLanguage:   doc.TargetLanguage,
		CreatedAt:        doc.CreatedAt.In(loc).Format(time.RFC3339),
		UpdatedAt:        doc.UpdatedAt.In(loc).Format(time.RFC3339),
		Timezone:         s.timezone,
		LineCount:        len(transcript.SplitLines(doc.RawText)),
		Text:             render.FormatDocumentText(doc, loc),
	}
}
