package domain

import (
	"fmt"
	"time"
)

// Default endpoints applied when a principal omits them.
const (
	DefaultGraphEndpoint = "https://graph.microsoft.com/v1.0"
	DefaultScope         = "https://graph.microsoft.com/.default"
)

// ServicePrincipal holds the app-registration credentials for one Microsoft
// tenant. Several principals may coexist; each mail account references the
// principal that can read its mailbox.
type ServicePrincipal struct {
	ID           string
	Name         string
	TenantID     string
	ClientID     string
	ClientSecret string
	AuthorityURL string
	GraphURL     string
	Scopes       []string
	Enabled      bool

	// Token state, mutated only by the token broker on a successful grant.
	TokenCache       string
	TokenExpiresAt   *time.Time
	LastTokenRefresh *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyDefaults fills in the authority URL, Graph endpoint and scopes when the
// administrator left them blank.
func (p *ServicePrincipal) ApplyDefaults() {
	if p.AuthorityURL == "" && p.TenantID != "" {
		p.AuthorityURL = fmt.Sprintf("https://login.microsoftonline.com/%s", p.TenantID)
	}
	if p.GraphURL == "" {
		p.GraphURL = DefaultGraphEndpoint
	}
	if len(p.Scopes) == 0 {
		p.Scopes = []string{DefaultScope}
	}
}

// CredentialsChanged reports whether the identifying credentials differ from
// prev. A change invalidates any cached token state.
func (p *ServicePrincipal) CredentialsChanged(prev *ServicePrincipal) bool {
	if prev == nil {
		return false
	}
	return p.ClientID != prev.ClientID ||
		p.ClientSecret != prev.ClientSecret ||
		p.TenantID != prev.TenantID
}

// ClearTokenState drops the cached token and its timestamps. Called when the
// client id, secret or tenant changes so a stale token is never reused.
func (p *ServicePrincipal) ClearTokenState() {
	p.TokenCache = ""
	p.TokenExpiresAt = nil
	p.LastTokenRefresh = nil
}
