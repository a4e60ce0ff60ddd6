package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// fakeRoles grants admin to a fixed set of users.
type fakeRoles struct {
	admins map[string]bool
}

func (r *fakeRoles) IsAdmin(_ context.Context, user string) bool { return r.admins[user] }

func adminTestService(store *fakeStore, admins ...string) *AdminService {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[a] = true
	}
	return NewAdminService(store, &fakeRoles{admins: set}, nil, nil, nil, nil, nil)
}

func TestEnableSync_PersonalMailbox(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &domain.MailAccount{
		ID: "a1", Email: "alice@contoso.com", Type: domain.UserMailbox,
	}
	svc := adminTestService(store)

	err := svc.EnableSync(context.Background(), "alice", "a1")

	require.NoError(t, err)
	assert.True(t, store.accounts["a1"].EnableIncoming)
}

func TestEnableSync_SharedMailboxNeedsAdmin(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &domain.MailAccount{
		ID: "a1", Email: "team@contoso.com", Type: domain.SharedMailbox,
	}
	svc := adminTestService(store, "root")

	err := svc.EnableSync(context.Background(), "alice", "a1")
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.False(t, store.accounts["a1"].EnableIncoming)

	err = svc.EnableSync(context.Background(), "root", "a1")
	require.NoError(t, err)
	assert.True(t, store.accounts["a1"].EnableIncoming)
}

func TestDisableSync(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &domain.MailAccount{
		ID: "a1", Email: "alice@contoso.com", Type: domain.UserMailbox, EnableIncoming: true,
	}
	svc := adminTestService(store)

	err := svc.DisableSync(context.Background(), "alice", "a1")

	require.NoError(t, err)
	assert.False(t, store.accounts["a1"].EnableIncoming)
}

func TestSyncStatus(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &domain.MailAccount{ID: "a1", Email: "alice@contoso.com"}
	store.logs["l1"] = &domain.SyncLog{ID: "l1", AccountID: "a1", Status: domain.SyncSuccess}
	store.messages["m1"] = &domain.MessageRecord{ProviderID: "m1", AccountID: "a1"}
	svc := adminTestService(store)

	status, err := svc.SyncStatus(context.Background(), "a1", 0)

	require.NoError(t, err)
	assert.Equal(t, "alice@contoso.com", status.Account.Email)
	assert.Len(t, status.RecentLogs, 1)
	assert.Equal(t, 1, status.Messages)
}

func TestSyncStatus_UnknownAccount(t *testing.T) {
	svc := adminTestService(newFakeStore())

	_, err := svc.SyncStatus(context.Background(), "ghost", 0)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateFolderFilter(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &domain.MailAccount{
		ID: "a1", Email: "alice@contoso.com", Type: domain.UserMailbox,
		DeltaCursors: map[string]string{"inbox": "cursor-blob"},
	}
	svc := adminTestService(store)

	filters := []domain.FolderFilter{
		{FolderName: "inbox", SyncEnabled: true},
		{FolderName: "archive", SyncEnabled: false},
	}
	err := svc.UpdateFolderFilter(context.Background(), "alice", "a1", filters)

	require.NoError(t, err)
	saved := store.accounts["a1"]
	assert.Equal(t, filters, saved.FolderFilters)
	// Cursors survive filter changes so re-enabling a folder resumes.
	assert.Equal(t, "cursor-blob", saved.DeltaCursors["inbox"])
}

func TestUpdateFolderFilter_Invalid(t *testing.T) {
	store := newFakeStore()
	store.accounts["a1"] = &domain.MailAccount{ID: "a1", Type: domain.UserMailbox}
	svc := adminTestService(store)

	err := svc.UpdateFolderFilter(context.Background(), "alice", "a1", []domain.FolderFilter{
		{FolderName: "  ", SyncEnabled: true},
	})
	assert.Error(t, err)

	err = svc.UpdateFolderFilter(context.Background(), "alice", "a1", []domain.FolderFilter{
		{FolderName: "inbox", SyncEnabled: true},
		{FolderName: "inbox", SyncEnabled: false},
	})
	assert.Error(t, err)
}

func TestSharedMailboxes_NeedsAdmin(t *testing.T) {
	svc := adminTestService(newFakeStore(), "root")

	_, err := svc.SharedMailboxes(context.Background(), "alice", "p1")

	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}
