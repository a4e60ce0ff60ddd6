package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// GetContactByEmail resolves a contact by address, case-insensitively.
func (s *Store) GetContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	var c domain.Contact
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM contacts WHERE lower(email) = ?`,
		strings.ToLower(email)).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	return &c, nil
}

// SaveContact upserts a contact keyed on the address.
func (s *Store) SaveContact(ctx context.Context, c *domain.Contact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name
	`, c.ID, c.Name, c.Email, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}
