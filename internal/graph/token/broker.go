package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
)

// ExpiryMargin is subtracted from the provider-reported expiry so a token is
// refreshed before it can expire mid-request.
const ExpiryMargin = 5 * time.Minute

// CredentialError is a failed token grant attributed to one principal. Code
// and Description carry the identity provider's structured error when the
// response contained one.
type CredentialError struct {
	Principal   string
	Code        string
	Description string
	Err         error
}

func (e *CredentialError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("token: grant failed for principal %s: %s: %s", e.Principal, e.Code, e.Description)
	}
	return fmt.Sprintf("token: grant failed for principal %s: %v", e.Principal, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Broker acquires client-credential tokens for service principals and caches
// them in memory and in the principal store. It implements
// driven.TokenSource.
//
// Token state is persisted only after a successful grant; a failed refresh
// never clobbers a still-valid persisted token.
type Broker struct {
	store driven.PrincipalStore
	log   *zap.Logger
	now   func() time.Time

	mu     sync.Mutex
	cached map[string]*Cache
}

var _ driven.TokenSource = (*Broker)(nil)

// NewBroker creates a token broker backed by the given principal store.
func NewBroker(store driven.PrincipalStore, log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		store:  store,
		log:    log.Named("token"),
		now:    time.Now,
		cached: make(map[string]*Cache),
	}
}

// Token returns a valid access token for the principal, reusing the cached
// token when it has not entered the expiry margin. No network traffic occurs
// on a cache hit.
func (b *Broker) Token(ctx context.Context, principalID string) (string, error) {
	b.mu.Lock()
	cache := b.cached[principalID]
	b.mu.Unlock()

	if cache != nil && cache.Valid(b.now(), ExpiryMargin) {
		return cache.AccessToken, nil
	}

	principal, err := b.store.GetPrincipal(ctx, principalID)
	if err != nil {
		return "", fmt.Errorf("load principal: %w", err)
	}
	if !principal.Enabled {
		return "", domain.ErrPrincipalDisabled
	}

	// The persisted blob may hold a token minted by an earlier process.
	if persisted, err := DecodeCache(principal.TokenCache); err == nil && persisted.Valid(b.now(), ExpiryMargin) {
		b.remember(principalID, persisted)
		return persisted.AccessToken, nil
	}

	return b.acquire(ctx, principal)
}

// ForceRefresh discards any cached token for the principal and acquires a
// fresh one.
func (b *Broker) ForceRefresh(ctx context.Context, principalID string) (string, error) {
	b.mu.Lock()
	delete(b.cached, principalID)
	b.mu.Unlock()

	principal, err := b.store.GetPrincipal(ctx, principalID)
	if err != nil {
		return "", fmt.Errorf("load principal: %w", err)
	}
	if !principal.Enabled {
		return "", domain.ErrPrincipalDisabled
	}

	return b.acquire(ctx, principal)
}

// TestConnection acquires a fresh token and reports the grant outcome
// without consulting any cache. Used by the connectivity check.
func (b *Broker) TestConnection(ctx context.Context, principalID string) error {
	_, err := b.ForceRefresh(ctx, principalID)
	return err
}

// acquire performs the client-credentials grant and persists the new token
// state atomically on success.
func (b *Broker) acquire(ctx context.Context, principal *domain.ServicePrincipal) (string, error) {
	principal.ApplyDefaults()

	cfg := clientcredentials.Config{
		ClientID:     principal.ClientID,
		ClientSecret: principal.ClientSecret,
		TokenURL:     principal.AuthorityURL + "/oauth2/v2.0/token",
		Scopes:       principal.Scopes,
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		cerr := &CredentialError{Principal: principal.ID, Err: err}
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) {
			cerr.Code = retrieve.ErrorCode
			cerr.Description = retrieve.ErrorDescription
		}
		b.log.Error("token grant failed",
			zap.String("principal", principal.ID),
			zap.String("code", cerr.Code),
			zap.Error(err))
		return "", cerr
	}

	cache := NewCache()
	cache.AccessToken = tok.AccessToken
	cache.ExpiresAt = tok.Expiry

	now := b.now()
	if err := b.store.UpdateTokenState(ctx, principal.ID, cache.Encode(), tok.Expiry, now); err != nil {
		// The token is still usable for this process; only persistence failed.
		b.log.Warn("persisting token state failed",
			zap.String("principal", principal.ID),
			zap.Error(err))
	}
	b.remember(principal.ID, cache)

	b.log.Debug("acquired access token",
		zap.String("principal", principal.ID),
		zap.Time("expires_at", tok.Expiry))

	return tok.AccessToken, nil
}

func (b *Broker) remember(principalID string, cache *Cache) {
	b.mu.Lock()
	b.cached[principalID] = cache
	b.mu.Unlock()
}
