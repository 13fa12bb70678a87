package repository

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type DocumentRepository interface {
	// SaveDocument inserts doc or replaces the stored document with the same ID.
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	// ListDocuments returns every document, newest first.
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

type PreferenceRepository interface {
	// GetPreferences returns zero-valued preferences when nothing was stored yet.
	GetPreferences(ctx context.Context) (*Preferences, error)
	SavePreferences(ctx context.Context, prefs Preferences) error
}

type Repository interface {
	DocumentRepository
	PreferenceRepository
	Close()
}
