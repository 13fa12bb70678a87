package webhook

import "context"

const DocumentWebhookSchemaVersion = "2026-10-16"

type DocumentWebhookPayload struct {
	SchemaVersion    string `json:"schema_version"`
	DocumentID       string `json:"document_id"`
	Title            string `json:"title"`
	Summary          string `json:"summary"`
	FormattedContent string `json:"formatted_content"`
	RawText          string `json:"raw_text"`
	TranslatedText   string `json:"translated_text"`
	SourceLanguage   string `json:"source_language"`
	TargetLanguage   string `json:"target_language"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	Timezone         string `json:"timezone"`
	LineCount        int    `json:"line_count"`
	Text             string `json:"text"`
}

type Sender interface {
	SendDocument(ctx context.Context, payload DocumentWebhookPayload) error
}
