package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
	"github.com/custodia-labs/mailbridge/internal/graph"
	"github.com/custodia-labs/mailbridge/internal/graph/token"
	"github.com/custodia-labs/mailbridge/internal/msync"
)

// AdminService exposes the operator-facing controls: toggling sync, running
// manual passes, inspecting status and discovering tenant resources. Every
// method takes the acting user explicitly and checks roles where required.
type AdminService struct {
	store  driven.Store
	roles  driven.RoleChecker
	broker *token.Broker
	engine *msync.Engine
	client *graph.Client
	tokens driven.TokenSource
	log    *zap.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(store driven.Store, roles driven.RoleChecker, broker *token.Broker, engine *msync.Engine, client *graph.Client, tokens driven.TokenSource, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{
		store:  store,
		roles:  roles,
		broker: broker,
		engine: engine,
		client: client,
		tokens: tokens,
		log:    log.Named("admin"),
	}
}

// requireAdminFor gates operations on shared mailboxes: only an administrator
// may configure them. Personal mailboxes need no role.
func (s *AdminService) requireAdminFor(ctx context.Context, actingUser string, account *domain.MailAccount) error {
	if account.Type != domain.SharedMailbox {
		return nil
	}
	if s.roles == nil || !s.roles.IsAdmin(ctx, actingUser) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// EnableSync switches incoming sync on for an account.
func (s *AdminService) EnableSync(ctx context.Context, actingUser, accountID string) error {
	return s.setSyncEnabled(ctx, actingUser, accountID, true)
}

// DisableSync switches incoming sync off for an account.
func (s *AdminService) DisableSync(ctx context.Context, actingUser, accountID string) error {
	return s.setSyncEnabled(ctx, actingUser, accountID, false)
}

func (s *AdminService) setSyncEnabled(ctx context.Context, actingUser, accountID string, enabled bool) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.requireAdminFor(ctx, actingUser, account); err != nil {
		return err
	}

	account.EnableIncoming = enabled
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return err
	}
	s.log.Info("sync toggled",
		zap.String("account", account.Email),
		zap.Bool("enabled", enabled),
		zap.String("by", actingUser))
	return nil
}

// TriggerManualSync runs a sync pass for the account right away and returns
// the resulting audit record.
func (s *AdminService) TriggerManualSync(ctx context.Context, actingUser, accountID string) (*domain.SyncLog, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdminFor(ctx, actingUser, account); err != nil {
		return nil, err
	}
	return s.engine.SyncAccount(ctx, account, domain.ManualSync)
}

// AccountStatus is the sync state of one account with its recent history.
type AccountStatus struct {
	Account    *domain.MailAccount
	RecentLogs []domain.SyncLog
	Messages   int
}

// SyncStatus reports the account's current state, message count and the most
// recent sync logs.
func (s *AdminService) SyncStatus(ctx context.Context, accountID string, logLimit int) (*AccountStatus, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if logLimit <= 0 {
		logLimit = 10
	}
	logs, err := s.store.ListSyncLogs(ctx, accountID, logLimit)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountMessages(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AccountStatus{Account: account, RecentLogs: logs, Messages: count}, nil
}

// TestPrincipal acquires a fresh token for the principal, bypassing every
// cache, and reports the grant outcome.
func (s *AdminService) TestPrincipal(ctx context.Context, principalID string) error {
	return s.broker.TestConnection(ctx, principalID)
}

// ListAccounts returns every registered account.
func (s *AdminService) ListAccounts(ctx context.Context) ([]domain.MailAccount, error) {
	return s.store.ListAccounts(ctx)
}

// ListAvailablePrincipals returns the enabled service principals.
func (s *AdminService) ListAvailablePrincipals(ctx context.Context) ([]domain.ServicePrincipal, error) {
	return s.store.ListPrincipals(ctx, true)
}

// SharedMailboxes discovers shared mailboxes in the principal's tenant by
// inspecting each directory user's mailbox settings. Administrator only.
func (s *AdminService) SharedMailboxes(ctx context.Context, actingUser, principalID string) ([]graph.User, error) {
	if s.roles == nil || !s.roles.IsAdmin(ctx, actingUser) {
		return nil, domain.ErrPermissionDenied
	}

	tok, err := s.tokens.Token(ctx, principalID)
	if err != nil {
		return nil, err
	}
	users, err := s.client.ListUsers(ctx, tok, 0)
	if err != nil {
		return nil, err
	}

	var shared []graph.User
	for _, u := range users {
		if u.Mail == "" {
			continue
		}
		settings, err := s.client.GetMailboxSettings(ctx, tok, u.Mail)
		if err != nil {
			// Users without a mailbox fail this call; skip them.
			continue
		}
		if strings.EqualFold(settings.UserPurpose, "shared") {
			shared = append(shared, u)
		}
	}
	return shared, nil
}

// ListFolders lists the mail folders of an account's mailbox for folder
// filter configuration.
func (s *AdminService) ListFolders(ctx context.Context, accountID string) ([]graph.MailFolder, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.Token(ctx, account.PrincipalID)
	if err != nil {
		return nil, err
	}
	return s.client.ListMailFolders(ctx, tok, account.Email)
}

// UpdateFolderFilter replaces the account's folder filters. Cursors of
// folders no longer filtered stay in place so re-enabling a folder resumes
// instead of restarting.
func (s *AdminService) UpdateFolderFilter(ctx context.Context, actingUser, accountID string, filters []domain.FolderFilter) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.requireAdminFor(ctx, actingUser, account); err != nil {
		return err
	}

	seen := make(map[string]bool, len(filters))
	for _, f := range filters {
		name := strings.TrimSpace(f.FolderName)
		if name == "" {
			return fmt.Errorf("folder filter with empty folder name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate folder filter for %q", name)
		}
		seen[name] = true
	}

	account.FolderFilters = filters
	account.UpdatedAt = time.Now()
	return s.store.SaveAccount(ctx, account)
}
