// Package authz holds the role and ownership checks applied after the
// session guard has produced an identity. Roles are matched by membership
// only; admin is not implicitly every role.
package authz

import "github.com/ErlanBelekov/marketplace/internal/domain"

// Escalated is the role set that bypasses ownership on listings.
var Escalated = domain.NewRoleSet(domain.RoleAdmin)

// RequireAnyRole passes iff the identity holds at least one allowed role.
func RequireAnyRole(id *domain.Identity, allowed domain.RoleSet) error {
	if id == nil || !id.Roles.Intersects(allowed) {
		return domain.ErrRoleDenied
	}
	return nil
}

// RequireOwnerOrRole passes for the resource owner or for a holder of one of
// the escalated roles. Callers must confirm the resource exists first.
func RequireOwnerOrRole(id *domain.Identity, ownerID string, escalated domain.RoleSet) error {
	if id == nil {
		return domain.ErrNotAuthorized
	}
	if id.ID != "" && id.ID == ownerID {
		return nil
	}
	if RequireAnyRole(id, escalated) == nil {
		return nil
	}
	return domain.ErrNotAuthorized
}
