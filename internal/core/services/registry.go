// Package services holds the application services that sit between the CLI
// and the engines: account and principal registration, administrative
// operations and the scheduled background tasks.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
)

// AccountRegistry enforces the registration invariants for mail accounts and
// service principals: one account per address and principal, at most one
// default outgoing account, and token-state invalidation on credential
// change.
type AccountRegistry struct {
	store driven.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewAccountRegistry creates an account registry.
func NewAccountRegistry(store driven.Store, log *zap.Logger) *AccountRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountRegistry{
		store: store,
		log:   log.Named("registry"),
		now:   time.Now,
	}
}

// CreateAccount registers a new mail account. It fails with
// domain.ErrDuplicateAccount when the address is already registered under the
// same principal, and with domain.ErrDefaultOutgoingExists when the account
// claims the default-outgoing flag while another account holds it. Nothing is
// written on failure.
func (r *AccountRegistry) CreateAccount(ctx context.Context, account *domain.MailAccount) error {
	if account.Email == "" {
		return fmt.Errorf("account email is required")
	}
	if account.PrincipalID == "" {
		return fmt.Errorf("account needs a service principal")
	}
	if _, err := r.store.GetPrincipal(ctx, account.PrincipalID); err != nil {
		return fmt.Errorf("resolve principal: %w", err)
	}

	existing, err := r.store.GetAccountByEmail(ctx, account.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if existing != nil && existing.PrincipalID == account.PrincipalID {
		return domain.ErrDuplicateAccount
	}

	if err := r.checkDefaultOutgoing(ctx, account); err != nil {
		return err
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.CreatedAt = r.now()
	account.UpdatedAt = account.CreatedAt

	if err := r.store.SaveAccount(ctx, account); err != nil {
		return err
	}
	r.log.Info("account registered",
		zap.String("account", account.Email),
		zap.String("type", string(account.Type)))
	return nil
}

// UpdateAccount saves changes to an existing account, holding the same
// invariants as CreateAccount.
func (r *AccountRegistry) UpdateAccount(ctx context.Context, account *domain.MailAccount) error {
	if _, err := r.store.GetAccount(ctx, account.ID); err != nil {
		return err
	}
	if err := r.checkDefaultOutgoing(ctx, account); err != nil {
		return err
	}
	account.UpdatedAt = r.now()
	return r.store.SaveAccount(ctx, account)
}

// checkDefaultOutgoing rejects a second claim on the default-outgoing flag.
func (r *AccountRegistry) checkDefaultOutgoing(ctx context.Context, account *domain.MailAccount) error {
	if !account.DefaultOutgoing {
		return nil
	}
	current, err := r.store.GetDefaultOutgoing(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if current != nil && current.ID != account.ID {
		return domain.ErrDefaultOutgoingExists
	}
	return nil
}

// SavePrincipal creates or updates a service principal. Changing the client
// id, secret or tenant clears the persisted token state so a token minted
// under the old credentials is never reused.
func (r *AccountRegistry) SavePrincipal(ctx context.Context, principal *domain.ServicePrincipal) error {
	if principal.TenantID == "" || principal.ClientID == "" || principal.ClientSecret == "" {
		return fmt.Errorf("tenant id, client id and client secret are required")
	}
	principal.ApplyDefaults()

	if principal.ID == "" {
		principal.ID = uuid.NewString()
		principal.CreatedAt = r.now()
		principal.UpdatedAt = principal.CreatedAt
		return r.store.SavePrincipal(ctx, principal)
	}

	prev, err := r.store.GetPrincipal(ctx, principal.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if prev != nil && principal.CredentialsChanged(prev) {
		principal.ClearTokenState()
		r.log.Info("credentials changed, token state cleared",
			zap.String("principal", principal.ID))
	} else if prev != nil {
		principal.TokenCache = prev.TokenCache
		principal.TokenExpiresAt = prev.TokenExpiresAt
		principal.LastTokenRefresh = prev.LastTokenRefresh
	}

	principal.UpdatedAt = r.now()
	return r.store.SavePrincipal(ctx, principal)
}
