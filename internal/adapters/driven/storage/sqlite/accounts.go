package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

const accountColumns = `id, name, type, account_user, email, principal_id,
	enabled, enable_incoming, enable_outgoing, default_outgoing,
	folder_filters, delta_cursors, sync_attachments, max_attachment_mb, sync_from_date,
	auto_create_contact, mark_synced_as_read, footer, always_use_account_address,
	last_sync_time, last_sync_status, sync_error, created_at, updated_at`

// GetAccount loads one account.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.MailAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetAccountByEmail resolves an account by its mailbox address,
// case-insensitively.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.MailAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = ?`,
		strings.ToLower(email))
	return scanAccount(row)
}

// GetDefaultOutgoing returns the account holding the default-outgoing flag.
func (s *Store) GetDefaultOutgoing(ctx context.Context) (*domain.MailAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE default_outgoing = 1`)
	return scanAccount(row)
}

// ListAccounts returns every account.
func (s *Store) ListAccounts(ctx context.Context) ([]domain.MailAccount, error) {
	return s.listAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY email`)
}

// ListIncomingAccounts returns the accounts eligible for a sync pass.
func (s *Store) ListIncomingAccounts(ctx context.Context) ([]domain.MailAccount, error) {
	return s.listAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE enabled = 1 AND enable_incoming = 1 ORDER BY email`)
}

func (s *Store) listAccounts(ctx context.Context, query string) ([]domain.MailAccount, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.MailAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// SaveAccount upserts an account. The partial unique index on the
// default-outgoing flag backs up the registry's pre-check; a constraint
// violation surfaces as domain.ErrDefaultOutgoingExists.
func (s *Store) SaveAccount(ctx context.Context, a *domain.MailAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts
		(id, name, type, account_user, email, principal_id,
		 enabled, enable_incoming, enable_outgoing, default_outgoing,
		 folder_filters, delta_cursors, sync_attachments, max_attachment_mb, sync_from_date,
		 auto_create_contact, mark_synced_as_read, footer, always_use_account_address,
		 last_sync_time, last_sync_status, sync_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			account_user = excluded.account_user,
			email = excluded.email,
			principal_id = excluded.principal_id,
			enabled = excluded.enabled,
			enable_incoming = excluded.enable_incoming,
			enable_outgoing = excluded.enable_outgoing,
			default_outgoing = excluded.default_outgoing,
			folder_filters = excluded.folder_filters,
			delta_cursors = excluded.delta_cursors,
			sync_attachments = excluded.sync_attachments,
			max_attachment_mb = excluded.max_attachment_mb,
			sync_from_date = excluded.sync_from_date,
			auto_create_contact = excluded.auto_create_contact,
			mark_synced_as_read = excluded.mark_synced_as_read,
			footer = excluded.footer,
			always_use_account_address = excluded.always_use_account_address,
			last_sync_time = excluded.last_sync_time,
			last_sync_status = excluded.last_sync_status,
			sync_error = excluded.sync_error,
			updated_at = excluded.updated_at
	`, a.ID, a.Name, string(a.Type), a.User, a.Email, a.PrincipalID,
		a.Enabled, a.EnableIncoming, a.EnableOutgoing, a.DefaultOutgoing,
		marshalJSON(a.FolderFilters), marshalJSON(a.DeltaCursors),
		a.SyncAttachments, a.MaxAttachmentMB, nullTime(a.SyncFromDate),
		a.AutoCreateContact, a.MarkSyncedAsRead, a.Footer, a.AlwaysUseAccountAddress,
		nullTime(a.LastSyncTime), string(a.LastSyncStatus), a.SyncError,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "idx_accounts_default_outgoing"):
			return domain.ErrDefaultOutgoingExists
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// UpdateCursor persists one folder's delta cursor and stamps the folder's
// last-sync time inside a single transaction.
func (s *Store) UpdateCursor(ctx context.Context, accountID, folder, cursor string, syncedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cursor update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var cursorsJSON, filtersJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT delta_cursors, folder_filters FROM accounts WHERE id = ?`, accountID).
		Scan(&cursorsJSON, &filtersJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load cursor state: %w", err)
	}

	cursors := map[string]string{}
	unmarshalJSON(cursorsJSON, &cursors)
	cursors[folder] = cursor

	var filters []domain.FolderFilter
	unmarshalJSON(filtersJSON, &filters)
	for i := range filters {
		if filters[i].FolderName == folder {
			t := syncedAt
			filters[i].LastSyncTime = &t
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET delta_cursors = ?, folder_filters = ?, updated_at = ? WHERE id = ?`,
		marshalJSON(cursors), marshalJSON(filters), syncedAt, accountID)
	if err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}
	return tx.Commit()
}

// UpdateSyncStatus records the outcome of a sync pass.
func (s *Store) UpdateSyncStatus(ctx context.Context, accountID string, status domain.SyncStatus, errMsg string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET last_sync_status = ?, sync_error = ?, last_sync_time = ?, updated_at = ?
		WHERE id = ?
	`, string(status), errMsg, at, at, accountID)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (*domain.MailAccount, error) {
	var (
		a        domain.MailAccount
		accType  string
		status   string
		filters  string
		cursors  string
		syncFrom sql.NullTime
		lastSync sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Name, &accType, &a.User, &a.Email, &a.PrincipalID,
		&a.Enabled, &a.EnableIncoming, &a.EnableOutgoing, &a.DefaultOutgoing,
		&filters, &cursors, &a.SyncAttachments, &a.MaxAttachmentMB, &syncFrom,
		&a.AutoCreateContact, &a.MarkSyncedAsRead, &a.Footer, &a.AlwaysUseAccountAddress,
		&lastSync, &status, &a.SyncError, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Type = domain.AccountType(accType)
	a.LastSyncStatus = domain.SyncStatus(status)
	unmarshalJSON(filters, &a.FolderFilters)
	a.DeltaCursors = map[string]string{}
	unmarshalJSON(cursors, &a.DeltaCursors)
	a.SyncFromDate = timePtr(syncFrom)
	a.LastSyncTime = timePtr(lastSync)
	return &a, nil
}
