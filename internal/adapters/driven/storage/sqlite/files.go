package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// SaveFile stores binary content.
func (s *Store) SaveFile(ctx context.Context, f *domain.StoredFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, name, url, content, private, record_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			content = excluded.content,
			private = excluded.private,
			record_id = excluded.record_id
	`, f.ID, f.Name, f.URL, f.Content, f.Private, f.RecordID, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	return nil
}

// GetFile loads one stored file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*domain.StoredFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, content, private, record_id, created_at
		FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// GetFileByURL loads one stored file by its URL.
func (s *Store) GetFileByURL(ctx context.Context, url string) (*domain.StoredFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, content, private, record_id, created_at
		FROM files WHERE url = ?`, url)
	return scanFile(row)
}

func scanFile(row rowScanner) (*domain.StoredFile, error) {
	var f domain.StoredFile
	err := row.Scan(&f.ID, &f.Name, &f.URL, &f.Content, &f.Private, &f.RecordID, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return &f, nil
}
