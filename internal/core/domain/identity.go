package domain

// IdentityKind tags a SendingIdentity variant.
type IdentityKind string

const (
	// RealAccount is an identity whose address is a configured mail account.
	RealAccount IdentityKind = "account"
	// SyntheticIdentity keeps the queued message's original sender address
	// while routing through the default outgoing account. The backing
	// account supplies credentials and settings; only the address differs.
	SyntheticIdentity IdentityKind = "synthetic"
)

// SendingIdentity is the resolved outbound sender for one queued message.
// Account is always the backing mail account; for RealAccount identities
// Address equals Account.Email.
type SendingIdentity struct {
	Kind    IdentityKind
	Address string
	Account *MailAccount
}

// Footer returns the backing account's footer HTML.
func (s SendingIdentity) Footer() string {
	if s.Account == nil {
		return ""
	}
	return s.Account.Footer
}

// PrincipalID returns the service principal behind the identity.
func (s SendingIdentity) PrincipalID() string {
	if s.Account == nil {
		return ""
	}
	return s.Account.PrincipalID
}
