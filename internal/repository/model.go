package repository

import "time"

// Document is the frozen result of one recording. ID never changes once assigned.
type Document struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	FormattedContent string    `json:"formattedContent"`
	Summary          string    `json:"summary"`
	RawText          string    `json:"rawText"`
	TranslatedText   string    `json:"translatedText"`
	SourceLanguage   string    `json:"sourceLanguage"`
	TargetLanguage   string    `json:"targetLanguage"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Preferences struct {
	SourceLanguage string
	TargetLanguage string
	APIKey         string
	UpdatedAt      time.Time
}
