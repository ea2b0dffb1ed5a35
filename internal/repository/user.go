package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
)

// UserRepository is the credential store. Implementations must enforce a
// unique, case-insensitive email and perform AppendInvalidatedToken and
// AddRole as single atomic updates, never as read-modify-write of the whole
// user record.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)

	// AppendInvalidatedToken is a no-op when the token is already listed.
	AppendInvalidatedToken(ctx context.Context, userID string, token domain.RevokedToken) error
	// PruneInvalidatedTokens drops listed tokens that expired at or before
	// cutoff and returns how many were dropped, or how many users were touched
	// where the store cannot count array elements.
	PruneInvalidatedTokens(ctx context.Context, cutoff time.Time) (int, error)

	// AddRole returns domain.ErrRoleConflict if the user already holds role.
	AddRole(ctx context.Context, userID string, role domain.Role) (domain.RoleSet, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
}
