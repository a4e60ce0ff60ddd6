package msync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/graph"
)

// fakeSyncStore implements the engine's storage surface in memory.
type fakeSyncStore struct {
	messages      map[string]*domain.MessageRecord // keyed by provider id
	cursorHistory []string
	statusHistory []domain.SyncStatus
	logs          map[string]*domain.SyncLog
	files         []*domain.StoredFile
	contacts      map[string]*domain.Contact
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{
		messages: make(map[string]*domain.MessageRecord),
		logs:     make(map[string]*domain.SyncLog),
		contacts: make(map[string]*domain.Contact),
	}
}

func (s *fakeSyncStore) GetAccount(_ context.Context, _ string) (*domain.MailAccount, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeSyncStore) GetAccountByEmail(_ context.Context, _ string) (*domain.MailAccount, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeSyncStore) GetDefaultOutgoing(_ context.Context) (*domain.MailAccount, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeSyncStore) ListAccounts(_ context.Context) ([]domain.MailAccount, error) {
	return nil, nil
}

func (s *fakeSyncStore) ListIncomingAccounts(_ context.Context) ([]domain.MailAccount, error) {
	return nil, nil
}

func (s *fakeSyncStore) SaveAccount(_ context.Context, _ *domain.MailAccount) error { return nil }

func (s *fakeSyncStore) UpdateCursor(_ context.Context, _, _, cursor string, _ time.Time) error {
	s.cursorHistory = append(s.cursorHistory, cursor)
	return nil
}

func (s *fakeSyncStore) UpdateSyncStatus(_ context.Context, _ string, status domain.SyncStatus, _ string, _ time.Time) error {
	s.statusHistory = append(s.statusHistory, status)
	return nil
}

func (s *fakeSyncStore) InsertMessage(_ context.Context, m *domain.MessageRecord) error {
	if _, ok := s.messages[m.ProviderID]; ok {
		return domain.ErrDuplicateMessage
	}
	s.messages[m.ProviderID] = m
	return nil
}

func (s *fakeSyncStore) MessageExists(_ context.Context, providerID string) (bool, error) {
	_, ok := s.messages[providerID]
	return ok, nil
}

func (s *fakeSyncStore) CountMessages(_ context.Context, _ string) (int, error) {
	return len(s.messages), nil
}

func (s *fakeSyncStore) InsertSyncLog(_ context.Context, l *domain.SyncLog) error {
	copied := *l
	s.logs[l.ID] = &copied
	return nil
}

func (s *fakeSyncStore) UpdateSyncLog(_ context.Context, l *domain.SyncLog) error {
	copied := *l
	s.logs[l.ID] = &copied
	return nil
}

func (s *fakeSyncStore) ListSyncLogs(_ context.Context, _ string, _ int) ([]domain.SyncLog, error) {
	return nil, nil
}

func (s *fakeSyncStore) PurgeSyncLogs(_ context.Context, _ time.Time) (int, error) { return 0, nil }

func (s *fakeSyncStore) SaveFile(_ context.Context, f *domain.StoredFile) error {
	s.files = append(s.files, f)
	return nil
}

func (s *fakeSyncStore) GetFile(_ context.Context, _ string) (*domain.StoredFile, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeSyncStore) GetFileByURL(_ context.Context, _ string) (*domain.StoredFile, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeSyncStore) GetContactByEmail(_ context.Context, email string) (*domain.Contact, error) {
	c, ok := s.contacts[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *fakeSyncStore) SaveContact(_ context.Context, c *domain.Contact) error {
	s.contacts[c.Email] = c
	return nil
}

// staticTokens is a TokenSource that always yields the same token.
type staticTokens struct{}

func (staticTokens) Token(_ context.Context, _ string) (string, error)        { return "tok", nil }
func (staticTokens) ForceRefresh(_ context.Context, _ string) (string, error) { return "tok", nil }

// mailboxServer simulates the delta and message endpoints of one mailbox.
type mailboxServer struct {
	*httptest.Server
	messages   map[string]graph.Message
	pages      []graph.DeltaResponse
	fetchFails map[string]bool
	deltaCalls int
}

func newMailboxServer(t *testing.T) *mailboxServer {
	t.Helper()
	ms := &mailboxServer{
		messages:   make(map[string]graph.Message),
		fetchFails: make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/users/bob@contoso.com/mailFolders/inbox/messages/delta", func(w http.ResponseWriter, r *http.Request) {
		ms.servePage(t, w, 0)
	})
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		var idx int
		fmt.Sscanf(r.URL.Path, "/page/%d", &idx)
		ms.servePage(t, w, idx)
	})
	mux.HandleFunc("/expired", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		fmt.Fprint(w, `{"error":{"code":"syncStateNotFound","message":"delta token expired"}}`)
	})
	mux.HandleFunc("/users/bob@contoso.com/messages/", func(w http.ResponseWriter, r *http.Request) {
		var id string
		fmt.Sscanf(r.URL.Path, "/users/bob@contoso.com/messages/%s", &id)
		if ms.fetchFails[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		msg, ok := ms.messages[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(msg))
	})
	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Close)
	return ms
}

func (ms *mailboxServer) servePage(t *testing.T, w http.ResponseWriter, idx int) {
	ms.deltaCalls++
	require.Less(t, idx, len(ms.pages))
	page := ms.pages[idx]
	if idx < len(ms.pages)-1 {
		page.NextLink = fmt.Sprintf("%s/page/%d", ms.URL, idx+1)
	} else {
		page.DeltaLink = ms.URL + "/final-delta"
	}
	require.NoError(t, json.NewEncoder(w).Encode(page))
}

// addMessage registers a full message and returns its delta stub.
func (ms *mailboxServer) addMessage(id, subject, received string) graph.Message {
	full := graph.Message{
		ID:               id,
		Subject:          subject,
		Body:             &graph.MessageBody{ContentType: "html", Content: "<p>" + subject + "</p>"},
		ReceivedDateTime: received,
		IsRead:           true,
		ConversationID:   "conv-" + id,
	}
	full.From = &graph.Recipient{}
	full.From.EmailAddress.Name = "Bob Sender"
	full.From.EmailAddress.Address = "sender@external.com"
	ms.messages[id] = full
	return graph.Message{ID: id, ReceivedDateTime: received}
}

func syncAccount() *domain.MailAccount {
	return &domain.MailAccount{
		ID:             "a1",
		Email:          "bob@contoso.com",
		PrincipalID:    "p1",
		Enabled:        true,
		EnableIncoming: true,
	}
}

func newSyncEngine(store *fakeSyncStore, serverURL string) *Engine {
	client := graph.NewClient(serverURL, graph.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}, nil)
	return NewEngine(store, staticTokens{}, client, nil)
}

func TestEngine_SyncAccount_FreshSync(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("m1", "first", "2026-05-01T10:00:00Z"),
		}},
		{Value: []graph.Message{
			server.addMessage("m2", "second", "2026-05-02T10:00:00Z"),
		}},
	}

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), syncAccount(), domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, slog.Status)
	assert.Equal(t, 2, slog.Fetched)
	assert.Equal(t, 2, slog.Created)
	assert.Equal(t, 0, slog.Failed)
	assert.Len(t, store.messages, 2)
	assert.Equal(t, "first", store.messages["m1"].Subject)

	// The cursor is persisted once per page: the mid-round nextLink first,
	// then the final deltaLink.
	require.Len(t, store.cursorHistory, 2)
	mid, err := DecodeCursor(store.cursorHistory[0])
	require.NoError(t, err)
	assert.Contains(t, mid.DeltaLink, "/page/1")
	final, err := DecodeCursor(store.cursorHistory[1])
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/final-delta", final.DeltaLink)

	assert.Equal(t, []domain.SyncStatus{domain.SyncSuccess}, store.statusHistory)
	assert.Equal(t, domain.SyncSuccess, store.logs[slog.ID].Status)
}

func TestEngine_SyncAccount_DuplicateCountsAsUpdated(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("m1", "already there", "2026-05-01T10:00:00Z"),
		}},
	}

	store := newFakeSyncStore()
	store.messages["m1"] = &domain.MessageRecord{ProviderID: "m1"}
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), syncAccount(), domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, slog.Status)
	assert.Equal(t, 1, slog.Fetched)
	assert.Equal(t, 0, slog.Created)
	assert.Equal(t, 1, slog.Updated)
}

func TestEngine_SyncAccount_MessageFailureDoesNotAbortPage(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("m1", "bad fetch", "2026-05-01T10:00:00Z"),
			server.addMessage("m2", "good", "2026-05-01T11:00:00Z"),
		}},
	}
	server.fetchFails["m1"] = true

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), syncAccount(), domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, slog.Status)
	assert.Equal(t, 2, slog.Fetched)
	assert.Equal(t, 1, slog.Created)
	assert.Equal(t, 1, slog.Failed)

	// The cursor still advances past the page.
	assert.Len(t, store.cursorHistory, 1)
}

func TestEngine_SyncAccount_ExpiredCursorRestartsFullSync(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("m1", "resynced", "2026-05-01T10:00:00Z"),
		}},
	}

	expired := NewCursor()
	expired.SetDeltaLink(server.URL + "/expired")

	account := syncAccount()
	account.DeltaCursors = map[string]string{"inbox": expired.Encode()}

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), account, domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, slog.Status)
	assert.Equal(t, 1, slog.Created)
	assert.Equal(t, 1, server.deltaCalls)
}

func TestEngine_SyncAccount_InvalidStoredCursorStartsFresh(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{{}}

	account := syncAccount()
	account.DeltaCursors = map[string]string{"inbox": "not base64 at all"}

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), account, domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncSuccess, slog.Status)
}

func TestEngine_SyncAccount_WindowSkipsOldMessages(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("old", "before window", "2020-01-01T10:00:00Z"),
			server.addMessage("new", "inside window", "2026-05-01T10:00:00Z"),
		}},
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	account := syncAccount()
	account.SyncFromDate = &from

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), account, domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, 2, slog.Fetched)
	assert.Equal(t, 1, slog.Created)
	assert.NotContains(t, store.messages, "old")
}

func TestEngine_SyncAccount_RemovedItemsSkipped(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			{ID: "gone", Removed: &graph.Removed{Reason: "deleted"}},
		}},
	}

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), syncAccount(), domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, 0, slog.Created)
	assert.Empty(t, store.messages)
}

func TestEngine_SyncAccount_AutoCreatesContact(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("m1", "hello", "2026-05-01T10:00:00Z"),
		}},
	}

	account := syncAccount()
	account.AutoCreateContact = true

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	_, err := engine.SyncAccount(context.Background(), account, domain.DeltaSync)

	require.NoError(t, err)
	contact := store.contacts["sender@external.com"]
	require.NotNil(t, contact)
	assert.Equal(t, "Bob Sender", contact.Name)
	assert.Equal(t, contact.ID, store.messages["m1"].ContactID)
}

func TestEngine_SyncAccount_Disabled(t *testing.T) {
	account := syncAccount()
	account.Enabled = false
	engine := newSyncEngine(newFakeSyncStore(), "http://unused")

	_, err := engine.SyncAccount(context.Background(), account, domain.DeltaSync)

	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
}

func TestEngine_SyncAccount_FolderFailureMarksPartial(t *testing.T) {
	server := newMailboxServer(t)
	server.pages = []graph.DeltaResponse{
		{Value: []graph.Message{
			server.addMessage("m1", "inbox ok", "2026-05-01T10:00:00Z"),
		}},
	}

	account := syncAccount()
	account.FolderFilters = []domain.FolderFilter{
		{FolderName: "inbox", SyncEnabled: true},
		{FolderName: "missing", SyncEnabled: true},
	}

	store := newFakeSyncStore()
	engine := newSyncEngine(store, server.URL)

	slog, err := engine.SyncAccount(context.Background(), account, domain.DeltaSync)

	require.NoError(t, err)
	assert.Equal(t, domain.SyncPartial, slog.Status)
	assert.Equal(t, 1, slog.Created)
	assert.NotEmpty(t, slog.ErrorMessage)
}
