package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

const queueColumns = `id, message, sender, recipients, show_as_cc, status, error,
	send_via_graph, account_id, attachments, disclosure_mode,
	add_unsubscribe_link, reference_type, reference_name, conversation_id, created_at`

// PendingMessages returns up to limit queue entries awaiting delivery.
// Entries stuck in the sending state are included, so a pass that crashed
// mid-send is retried on the next tick.
func (s *Store) PendingMessages(ctx context.Context, limit int) ([]domain.QueuedMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+queueColumns+` FROM queue
		WHERE status IN (?, ?)
		ORDER BY created_at
		LIMIT ?
	`, string(domain.QueueNotSent), string(domain.QueueSending), limit)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var msgs []domain.QueuedMessage
	for rows.Next() {
		m, err := scanQueued(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetQueuedMessage loads one queue entry.
func (s *Store) GetQueuedMessage(ctx context.Context, id string) (*domain.QueuedMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM queue WHERE id = ?`, id)
	return scanQueued(row)
}

// SaveQueuedMessage upserts a queue entry.
func (s *Store) SaveQueuedMessage(ctx context.Context, m *domain.QueuedMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue
		(id, message, sender, recipients, show_as_cc, status, error,
		 send_via_graph, account_id, attachments, disclosure_mode,
		 add_unsubscribe_link, reference_type, reference_name, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			message = excluded.message,
			sender = excluded.sender,
			recipients = excluded.recipients,
			show_as_cc = excluded.show_as_cc,
			status = excluded.status,
			error = excluded.error,
			send_via_graph = excluded.send_via_graph,
			account_id = excluded.account_id,
			attachments = excluded.attachments,
			disclosure_mode = excluded.disclosure_mode,
			add_unsubscribe_link = excluded.add_unsubscribe_link,
			reference_type = excluded.reference_type,
			reference_name = excluded.reference_name,
			conversation_id = excluded.conversation_id
	`, m.ID, m.Message, m.Sender, marshalJSON(m.Recipients), m.ShowAsCC,
		string(m.Status), m.Error, m.SendViaGraph, m.AccountID,
		marshalJSON(m.Attachments), string(m.DisclosureMode),
		m.AddUnsubscribeLink, m.ReferenceType, m.ReferenceName, m.ConversationID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save queue entry: %w", err)
	}
	return nil
}

// UpdateQueueStatus sets the overall state of one queue entry.
func (s *Store) UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE queue SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateRecipientStatus writes one recipient's outcome. The recipients column
// is a JSON list, so the update is a read-modify-write inside a transaction.
func (s *Store) UpdateRecipientStatus(ctx context.Context, id string, recipientIdx int, status domain.DeliveryStatus, errMsg string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recipient update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var recipientsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT recipients FROM queue WHERE id = ?`, id).Scan(&recipientsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}

	var recipients []domain.Recipient
	unmarshalJSON(recipientsJSON, &recipients)
	if recipientIdx < 0 || recipientIdx >= len(recipients) {
		return fmt.Errorf("recipient index %d out of range", recipientIdx)
	}
	recipients[recipientIdx].Status = status
	recipients[recipientIdx].Error = errMsg

	_, err = tx.ExecContext(ctx,
		`UPDATE queue SET recipients = ? WHERE id = ?`,
		marshalJSON(recipients), id)
	if err != nil {
		return fmt.Errorf("persist recipients: %w", err)
	}
	return tx.Commit()
}

// MarkConversationSent mirrors successful delivery onto the linked
// conversation record.
func (s *Store) MarkConversationSent(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, status, updated_at)
		VALUES (?, 'sent', ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, conversationID, time.Now())
	if err != nil {
		return fmt.Errorf("mark conversation sent: %w", err)
	}
	return nil
}

func scanQueued(row rowScanner) (*domain.QueuedMessage, error) {
	var (
		m           domain.QueuedMessage
		recipients  string
		attachments string
		status      string
		disclosure  string
	)
	err := row.Scan(&m.ID, &m.Message, &m.Sender, &recipients, &m.ShowAsCC, &status, &m.Error,
		&m.SendViaGraph, &m.AccountID, &attachments, &disclosure,
		&m.AddUnsubscribeLink, &m.ReferenceType, &m.ReferenceName, &m.ConversationID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan queue entry: %w", err)
	}
	m.Status = domain.QueueStatus(status)
	m.DisclosureMode = domain.DisclosureMode(disclosure)
	unmarshalJSON(recipients, &m.Recipients)
	unmarshalJSON(attachments, &m.Attachments)
	return &m, nil
}
