package domain

import "time"

// AccountType distinguishes a personal mailbox from a shared one.
type AccountType string

const (
	// UserMailbox is an individual user's mailbox.
	UserMailbox AccountType = "user"
	// SharedMailbox is a shared mailbox; only administrators may configure it.
	SharedMailbox AccountType = "shared"
)

// SyncStatus is the terminal state of the most recent sync pass.
type SyncStatus string

const (
	// SyncInProgress marks a pass that has started but not finished.
	SyncInProgress SyncStatus = "in_progress"
	// SyncSuccess marks a pass where every folder completed.
	SyncSuccess SyncStatus = "success"
	// SyncFailed marks a pass aborted by an account-level error.
	SyncFailed SyncStatus = "failed"
	// SyncPartial marks a pass where some folders completed and some errored.
	SyncPartial SyncStatus = "partial"
)

// FolderFilter enables or disables syncing for one mail folder.
type FolderFilter struct {
	FolderName   string     `json:"folder_name"`
	SyncEnabled  bool       `json:"sync_enabled"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}

// MailAccount is a mailbox synced from and/or sent through Microsoft 365.
type MailAccount struct {
	ID          string
	Name        string
	Type        AccountType
	User        string
	Email       string
	PrincipalID string

	Enabled         bool
	EnableIncoming  bool
	EnableOutgoing  bool
	DefaultOutgoing bool

	// Sync configuration.
	FolderFilters     []FolderFilter
	DeltaCursors      map[string]string
	SyncAttachments   bool
	MaxAttachmentMB   int
	SyncFromDate      *time.Time
	AutoCreateContact bool
	MarkSyncedAsRead  bool

	// Outgoing configuration.
	Footer string
	// AlwaysUseAccountAddress forces the account's own address as the
	// envelope sender regardless of the queued message's sender.
	AlwaysUseAccountAddress bool

	// Status fields, mutated only by the sync engine.
	LastSyncTime   *time.Time
	LastSyncStatus SyncStatus
	SyncError      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MaxAttachmentBytes returns the attachment ceiling in bytes, defaulting to
// 10 MB when unset.
func (a *MailAccount) MaxAttachmentBytes() int64 {
	mb := a.MaxAttachmentMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) * 1024 * 1024
}

// EnabledFolders returns the folders with syncing switched on. Accounts with
// no filter configured sync the Inbox.
func (a *MailAccount) EnabledFolders() []string {
	if len(a.FolderFilters) == 0 {
		return []string{"inbox"}
	}
	var names []string
	for _, f := range a.FolderFilters {
		if f.SyncEnabled {
			names = append(names, f.FolderName)
		}
	}
	return names
}

// Cursor returns the stored delta cursor for a folder, or "" for a folder
// never synced before.
func (a *MailAccount) Cursor(folder string) string {
	if a.DeltaCursors == nil {
		return ""
	}
	return a.DeltaCursors[folder]
}
