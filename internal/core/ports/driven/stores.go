// Package driven defines the interfaces the core depends on: the external
// document store, token acquisition, document rendering and role checks.
package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// PrincipalStore persists service principals and their token state.
type PrincipalStore interface {
	GetPrincipal(ctx context.Context, id string) (*domain.ServicePrincipal, error)
	ListPrincipals(ctx context.Context, enabledOnly bool) ([]domain.ServicePrincipal, error)
	SavePrincipal(ctx context.Context, p *domain.ServicePrincipal) error

	// UpdateTokenState writes the cache blob and both timestamps in a
	// single atomic update. It is the only mutation the token broker makes.
	UpdateTokenState(ctx context.Context, id, cacheBlob string, expiresAt, refreshedAt time.Time) error
}

// AccountStore persists mail accounts, their folder cursors and sync status.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*domain.MailAccount, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.MailAccount, error)
	GetDefaultOutgoing(ctx context.Context) (*domain.MailAccount, error)
	ListAccounts(ctx context.Context) ([]domain.MailAccount, error)
	ListIncomingAccounts(ctx context.Context) ([]domain.MailAccount, error)
	SaveAccount(ctx context.Context, a *domain.MailAccount) error

	// UpdateCursor persists one folder's delta cursor and last-sync time.
	// Called only after the batch the cursor belongs to has been processed.
	UpdateCursor(ctx context.Context, accountID, folder, cursor string, syncedAt time.Time) error

	// UpdateSyncStatus records the outcome of a sync pass on the account.
	UpdateSyncStatus(ctx context.Context, accountID string, status domain.SyncStatus, errMsg string, at time.Time) error
}

// MessageStore persists synced message records. InsertMessage must be an
// atomic existence-check+insert keyed on the provider message id so the
// dedup invariant holds even across concurrent sync runs.
type MessageStore interface {
	// InsertMessage returns domain.ErrDuplicateMessage when the provider id
	// is already recorded.
	InsertMessage(ctx context.Context, m *domain.MessageRecord) error
	MessageExists(ctx context.Context, providerID string) (bool, error)
	CountMessages(ctx context.Context, accountID string) (int, error)
}

// QueueStore drains and updates the host application's outbound mail queue.
type QueueStore interface {
	// PendingMessages returns up to limit queue entries that are not yet
	// fully sent. Entries stuck in the sending state are included so a
	// crashed pass is retried on the next tick.
	PendingMessages(ctx context.Context, limit int) ([]domain.QueuedMessage, error)
	GetQueuedMessage(ctx context.Context, id string) (*domain.QueuedMessage, error)
	SaveQueuedMessage(ctx context.Context, m *domain.QueuedMessage) error

	UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus, errMsg string) error

	// UpdateRecipientStatus writes one recipient's outcome immediately, so
	// a crash mid-send leaves accurately attributed partial progress.
	UpdateRecipientStatus(ctx context.Context, id string, recipientIdx int, status domain.DeliveryStatus, errMsg string) error

	// MarkConversationSent mirrors delivery onto the linked conversation.
	MarkConversationSent(ctx context.Context, conversationID string) error
}

// SyncLogStore appends and finalizes sync audit records.
type SyncLogStore interface {
	InsertSyncLog(ctx context.Context, l *domain.SyncLog) error
	UpdateSyncLog(ctx context.Context, l *domain.SyncLog) error
	ListSyncLogs(ctx context.Context, accountID string, limit int) ([]domain.SyncLog, error)
	PurgeSyncLogs(ctx context.Context, before time.Time) (int, error)
}

// FileStore persists binary attachments.
type FileStore interface {
	SaveFile(ctx context.Context, f *domain.StoredFile) error
	GetFile(ctx context.Context, id string) (*domain.StoredFile, error)
	GetFileByURL(ctx context.Context, url string) (*domain.StoredFile, error)
}

// ContactStore resolves or creates contacts by email address.
type ContactStore interface {
	GetContactByEmail(ctx context.Context, email string) (*domain.Contact, error)
	SaveContact(ctx context.Context, c *domain.Contact) error
}

// Store is the full document-store surface the service wires together.
type Store interface {
	PrincipalStore
	AccountStore
	MessageStore
	QueueStore
	SyncLogStore
	FileStore
	ContactStore

	Close() error
}
