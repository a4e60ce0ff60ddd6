// Package roles implements the role checker for standalone operation, where
// no host identity system exists.
package roles

import (
	"context"

	"github.com/custodia-labs/mailbridge/internal/core/ports/driven"
)

// Ensure StaticChecker implements the interface.
var _ driven.RoleChecker = (*StaticChecker)(nil)

// StaticChecker grants the administrator role to a configured set of users.
// An empty set grants it to everyone, which suits a single-operator install.
type StaticChecker struct {
	admins map[string]bool
}

// NewStaticChecker creates a checker over the given admin user names.
func NewStaticChecker(admins []string) *StaticChecker {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		set[a] = true
	}
	return &StaticChecker{admins: set}
}

// IsAdmin reports whether the user holds the administrator role.
func (c *StaticChecker) IsAdmin(_ context.Context, user string) bool {
	if len(c.admins) == 0 {
		return true
	}
	return c.admins[user]
}
