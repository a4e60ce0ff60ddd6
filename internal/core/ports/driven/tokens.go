package driven

import "context"

// TokenSource yields a valid bearer token for a service principal. The
// broker implementation caches tokens and refreshes inside the expiry
// safety margin; callers never see a token that is about to lapse.
type TokenSource interface {
	Token(ctx context.Context, principalID string) (string, error)
	ForceRefresh(ctx context.Context, principalID string) (string, error)
}
