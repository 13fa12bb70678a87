package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/tsuyaku/internal/repository"
	_ "modernc.org/sqlite"
)

// SQLiteRepository stores documents in a single local file. Times are kept as
// unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunSQLiteMigration(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) SaveDocument(ctx context.Context, doc repository.Document) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   formatted_content = excluded.formatted_content,
		   summary = excluded.summary,
		   raw_text = excluded.raw_text,
		   translated_text = excluded.translated_text,
		   source_language = excluded.source_language,
		   target_language = excluded.target_language,
		   updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.FormattedContent, doc.Summary, doc.RawText, doc.TranslatedText,
		doc.SourceLanguage, doc.TargetLanguage, toUnixMilli(doc.CreatedAt), toUnixMilli(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetDocument(ctx context.Context, id string) (*repository.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanSQLiteDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *SQLiteRepository) ListDocuments(ctx context.Context) ([]repository.Document, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	list := []repository.Document{}
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		list = append(list, *doc)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetPreferences(ctx context.Context) (*repository.Preferences, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT source_language, target_language, api_key, updated_at FROM preferences WHERE id = 1`)
	var p repository.Preferences
	var updatedAt int64
	if err := row.Scan(&p.SourceLanguage, &p.TargetLanguage, &p.APIKey, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &repository.Preferences{}, nil
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	p.UpdatedAt = fromUnixMilli(updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, prefs repository.Preferences) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (id, source_language, target_language, api_key, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   source_language = excluded.source_language,
		   target_language = excluded.target_language,
		   api_key = excluded.api_key,
		   updated_at = excluded.updated_at`,
		prefs.SourceLanguage, prefs.TargetLanguage, prefs.APIKey, toUnixMilli(prefs.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() {
	r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (*repository.Document, error) {
	var d repository.Document
	var createdAt, updatedAt int64
	err := row.Scan(&d.ID, &d.Title, &d.FormattedContent, &d.Summary, &d.RawText, &d.TranslatedText,
		&d.SourceLanguage, &d.TargetLanguage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	d.CreatedAt = fromUnixMilli(createdAt)
	d.UpdatedAt = fromUnixMilli(updatedAt)
	return &d, nil
}

func toUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
