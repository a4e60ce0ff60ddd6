package domain

import "errors"

// Sentinel errors shared across services and stores.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateMessage indicates a message with the same provider id is
	// already recorded. The store raises this from its atomic
	// exists-check+insert so concurrent sync runs cannot double-record.
	ErrDuplicateMessage = errors.New("message already recorded")

	// ErrDuplicateAccount indicates an account already exists for the same
	// email address and service principal.
	ErrDuplicateAccount = errors.New("account already exists for this address and principal")

	// ErrDefaultOutgoingExists indicates another account already holds the
	// default-outgoing flag. At most one account may hold it system-wide.
	ErrDefaultOutgoingExists = errors.New("another account is already the default outgoing account")

	// ErrNoSendingAccount indicates no enabled account could be resolved as
	// the sender; the message stays on the external SMTP path.
	ErrNoSendingAccount = errors.New("no eligible sending account configured")

	// ErrAccountDisabled indicates the account is switched off.
	ErrAccountDisabled = errors.New("account is not enabled")

	// ErrPrincipalDisabled indicates the service principal is switched off.
	ErrPrincipalDisabled = errors.New("service principal is not enabled")

	// ErrPermissionDenied indicates the acting user lacks the required role.
	ErrPermissionDenied = errors.New("permission denied")
)
