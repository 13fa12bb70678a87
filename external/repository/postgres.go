package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxseedlab/tsuyaku/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

const documentColumns = `id, title, formatted_content, summary, raw_text, translated_text, source_language, target_language, created_at, updated_at`

func (r *PostgresRepository) SaveDocument(ctx context.Context, doc repository.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   formatted_content = EXCLUDED.formatted_content,
		   summary = EXCLUDED.summary,
		   raw_text = EXCLUDED.raw_text,
		   translated_text = EXCLUDED.translated_text,
		   source_language = EXCLUDED.source_language,
		   target_language = EXCLUDED.target_language,
		   updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.Title, doc.FormattedContent, doc.Summary, doc.RawText, doc.TranslatedText,
		doc.SourceLanguage, doc.TargetLanguage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetDocument(ctx context.Context, id string) (*repository.Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *PostgresRepository) ListDocuments(ctx context.Context) ([]repository.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()
	list := []repository.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		list = append(list, *doc)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) DeleteDocument(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) GetPreferences(ctx context.Context) (*repository.Preferences, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT source_language, target_language, api_key, updated_at FROM preferences WHERE id = 1`)
	var p repository.Preferences
	if err := row.Scan(&p.SourceLanguage, &p.TargetLanguage, &p.APIKey, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &repository.Preferences{}, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) SavePreferences(ctx context.Context, prefs repository.Preferences) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO preferences (id, source_language, target_language, api_key, updated_at)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   source_language = EXCLUDED.source_language,
		   target_language = EXCLUDED.target_language,
		   api_key = EXCLUDED.api_key,
		   updated_at = EXCLUDED.updated_at`,
		prefs.SourceLanguage, prefs.TargetLanguage, prefs.APIKey, prefs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func scanDocument(row pgx.Row) (*repository.Document, error) {
	var d repository.Document
	err := row.Scan(&d.ID, &d.Title, &d.FormattedContent, &d.Summary, &d.RawText, &d.TranslatedText,
		&d.SourceLanguage, &d.TargetLanguage, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
