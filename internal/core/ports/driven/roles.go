package driven

import "context"

// RoleChecker answers permission questions against the host application's
// identity system. The acting user is always an explicit parameter; nothing
// in the core reads ambient session state.
type RoleChecker interface {
	IsAdmin(ctx context.Context, user string) bool
}
