package delivery

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
)

// SenderResolver maps a queued message's sender address to the identity the
// send is issued under.
type SenderResolver interface {
	Resolve(ctx context.Context, sender string) (domain.SendingIdentity, error)
}

// RegistryResolver resolves senders against the configured account registry:
// an enabled outgoing account with the exact address wins; otherwise the
// default outgoing account carries the message, either under its own address
// or under the original sender as a synthetic identity.
type RegistryResolver struct {
	accounts driven.AccountStore
}

// NewRegistryResolver creates the standard resolver.
func NewRegistryResolver(accounts driven.AccountStore) *RegistryResolver {
	return &RegistryResolver{accounts: accounts}
}

// Resolve applies the sender policy. It returns domain.ErrNoSendingAccount
// when neither an exact match nor a usable default exists; the caller leaves
// such messages to the external delivery path.
func (r *RegistryResolver) Resolve(ctx context.Context, sender string) (domain.SendingIdentity, error) {
	address := bareAddress(sender)
	if address == "" {
		return domain.SendingIdentity{}, domain.ErrNoSendingAccount
	}

	account, err := r.accounts.GetAccountByEmail(ctx, address)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.SendingIdentity{}, err
	}
	if account != nil && account.Enabled && account.EnableOutgoing {
		return domain.SendingIdentity{
			Kind:    domain.RealAccount,
			Address: account.Email,
			Account: account,
		}, nil
	}

	fallback, err := r.accounts.GetDefaultOutgoing(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SendingIdentity{}, domain.ErrNoSendingAccount
		}
		return domain.SendingIdentity{}, err
	}
	if fallback == nil || !fallback.Enabled || !fallback.EnableOutgoing {
		return domain.SendingIdentity{}, domain.ErrNoSendingAccount
	}

	if fallback.AlwaysUseAccountAddress {
		return domain.SendingIdentity{
			Kind:    domain.RealAccount,
			Address: fallback.Email,
			Account: fallback,
		}, nil
	}
	return domain.SendingIdentity{
		Kind:    domain.SyntheticIdentity,
		Address: address,
		Account: fallback,
	}, nil
}

// bareAddress strips a display name from a sender header value.
func bareAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(sender); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(sender)
}
