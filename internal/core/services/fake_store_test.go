package services

import (
	"context"
	"strings"
	"time"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

// fakeStore is an in-memory document store shared by the service tests.
type fakeStore struct {
	principals map[string]*domain.ServicePrincipal
	accounts   map[string]*domain.MailAccount
	messages   map[string]*domain.MessageRecord
	queue      map[string]*domain.QueuedMessage
	logs       map[string]*domain.SyncLog
	files      map[string]*domain.StoredFile
	contacts   map[string]*domain.Contact
	purged     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		principals: make(map[string]*domain.ServicePrincipal),
		accounts:   make(map[string]*domain.MailAccount),
		messages:   make(map[string]*domain.MessageRecord),
		queue:      make(map[string]*domain.QueuedMessage),
		logs:       make(map[string]*domain.SyncLog),
		files:      make(map[string]*domain.StoredFile),
		contacts:   make(map[string]*domain.Contact),
	}
}

func (s *fakeStore) GetPrincipal(_ context.Context, id string) (*domain.ServicePrincipal, error) {
	p, ok := s.principals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) ListPrincipals(_ context.Context, enabledOnly bool) ([]domain.ServicePrincipal, error) {
	var out []domain.ServicePrincipal
	for _, p := range s.principals {
		if enabledOnly && !p.Enabled {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeStore) SavePrincipal(_ context.Context, p *domain.ServicePrincipal) error {
	copied := *p
	s.principals[p.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateTokenState(_ context.Context, id, cacheBlob string, expiresAt, refreshedAt time.Time) error {
	p, ok := s.principals[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.TokenCache = cacheBlob
	p.TokenExpiresAt = &expiresAt
	p.LastTokenRefresh = &refreshedAt
	return nil
}

func (s *fakeStore) GetAccount(_ context.Context, id string) (*domain.MailAccount, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *fakeStore) GetAccountByEmail(_ context.Context, email string) (*domain.MailAccount, error) {
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetDefaultOutgoing(_ context.Context) (*domain.MailAccount, error) {
	for _, a := range s.accounts {
		if a.DefaultOutgoing {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) ListAccounts(_ context.Context) ([]domain.MailAccount, error) {
	var out []domain.MailAccount
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) ListIncomingAccounts(_ context.Context) ([]domain.MailAccount, error) {
	var out []domain.MailAccount
	for _, a := range s.accounts {
		if a.Enabled && a.EnableIncoming {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveAccount(_ context.Context, a *domain.MailAccount) error {
	copied := *a
	s.accounts[a.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateCursor(_ context.Context, accountID, folder, cursor string, _ time.Time) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	if a.DeltaCursors == nil {
		a.DeltaCursors = make(map[string]string)
	}
	a.DeltaCursors[folder] = cursor
	return nil
}

func (s *fakeStore) UpdateSyncStatus(_ context.Context, accountID string, status domain.SyncStatus, errMsg string, at time.Time) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.LastSyncStatus = status
	a.SyncError = errMsg
	a.LastSyncTime = &at
	return nil
}

func (s *fakeStore) InsertMessage(_ context.Context, m *domain.MessageRecord) error {
	if _, ok := s.messages[m.ProviderID]; ok {
		return domain.ErrDuplicateMessage
	}
	copied := *m
	s.messages[m.ProviderID] = &copied
	return nil
}

func (s *fakeStore) MessageExists(_ context.Context, providerID string) (bool, error) {
	_, ok := s.messages[providerID]
	return ok, nil
}

func (s *fakeStore) CountMessages(_ context.Context, accountID string) (int, error) {
	n := 0
	for _, m := range s.messages {
		if m.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) PendingMessages(_ context.Context, _ int) ([]domain.QueuedMessage, error) {
	var out []domain.QueuedMessage
	for _, m := range s.queue {
		if m.Status == domain.QueueNotSent || m.Status == domain.QueueSending {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) GetQueuedMessage(_ context.Context, id string) (*domain.QueuedMessage, error) {
	m, ok := s.queue[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *fakeStore) SaveQueuedMessage(_ context.Context, m *domain.QueuedMessage) error {
	copied := *m
	s.queue[m.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateQueueStatus(_ context.Context, id string, status domain.QueueStatus, errMsg string) error {
	m, ok := s.queue[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	m.Error = errMsg
	return nil
}

func (s *fakeStore) UpdateRecipientStatus(_ context.Context, id string, idx int, status domain.DeliveryStatus, errMsg string) error {
	m, ok := s.queue[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Recipients[idx].Status = status
	m.Recipients[idx].Error = errMsg
	return nil
}

func (s *fakeStore) MarkConversationSent(_ context.Context, _ string) error { return nil }

func (s *fakeStore) InsertSyncLog(_ context.Context, l *domain.SyncLog) error {
	copied := *l
	s.logs[l.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateSyncLog(_ context.Context, l *domain.SyncLog) error {
	copied := *l
	s.logs[l.ID] = &copied
	return nil
}

func (s *fakeStore) ListSyncLogs(_ context.Context, accountID string, limit int) ([]domain.SyncLog, error) {
	var out []domain.SyncLog
	for _, l := range s.logs {
		if l.AccountID == accountID {
			out = append(out, *l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) PurgeSyncLogs(_ context.Context, before time.Time) (int, error) {
	n := 0
	for id, l := range s.logs {
		if l.StartTime.Before(before) {
			delete(s.logs, id)
			n++
		}
	}
	s.purged += n
	return n, nil
}

func (s *fakeStore) SaveFile(_ context.Context, f *domain.StoredFile) error {
	copied := *f
	s.files[f.ID] = &copied
	return nil
}

func (s *fakeStore) GetFile(_ context.Context, id string) (*domain.StoredFile, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *fakeStore) GetFileByURL(_ context.Context, url string) (*domain.StoredFile, error) {
	for _, f := range s.files {
		if f.URL == url {
			copied := *f
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetContactByEmail(_ context.Context, email string) (*domain.Contact, error) {
	c, ok := s.contacts[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *fakeStore) SaveContact(_ context.Context, c *domain.Contact) error {
	copied := *c
	s.contacts[c.Email] = &copied
	return nil
}

func (s *fakeStore) Close() error { return nil }
