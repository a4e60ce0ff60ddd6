package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// InsertMessage records a synced message. The unique index on the provider id
// makes the existence check and the insert one atomic statement; a losing
// writer gets domain.ErrDuplicateMessage.
func (s *Store) InsertMessage(ctx context.Context, m *domain.MessageRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages
		(id, provider_id, account_id, folder_name, subject, sender, sender_name,
		 to_list, cc_list, bcc_list, content, text_preview, timestamp,
		 has_attachments, conversation_id, contact_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ProviderID, m.AccountID, m.FolderName, m.Subject, m.Sender, m.SenderName,
		marshalJSON(m.To), marshalJSON(m.CC), marshalJSON(m.BCC),
		m.Content, m.TextPreview, m.Timestamp,
		m.HasAttachments, m.ConversationID, m.ContactID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicateMessage
	}
	return nil
}

// MessageExists reports whether a provider message id is already recorded.
func (s *Store) MessageExists(ctx context.Context, providerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM messages WHERE provider_id = ?`, providerID).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check message: %w", err)
}

// CountMessages counts the recorded messages of one account.
func (s *Store) CountMessages(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE account_id = ?`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
