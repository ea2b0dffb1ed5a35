// Package session turns a bearer Authorization header into a trusted
// identity. The guard holds no state of its own: every call is a function of
// the token, the current user record and the current time.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/metrics"
)

const bearerPrefix = "Bearer "

// Verifier is the subset of token.Service the guard needs.
type Verifier interface {
	Verify(raw string) (domain.TokenClaims, error)
}

// UserFinder is the subset of repository.UserRepository the guard needs.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type Guard struct {
	tokens Verifier
	users  UserFinder
}

func NewGuard(tokens Verifier, users UserFinder) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Authenticate resolves header to an identity. Failures are one of
// domain.ErrNoToken, domain.ErrInvalidToken (wrapping ErrTokenMalformed or
// ErrTokenExpired), domain.ErrUserNotFound, domain.ErrTokenRevoked or
// domain.ErrStoreUnavailable.
func (g *Guard) Authenticate(ctx context.Context, header string) (*domain.Identity, error) {
	raw, err := BearerToken(header)
	if err != nil {
		return nil, fail("no_token", err)
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, domain.ErrTokenExpired) {
			reason = "expired"
		}
		return nil, fail(reason, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err))
	}

	user, err := g.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fail("user_not_found", domain.ErrUserNotFound)
		}
		return nil, fail("store_unavailable", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
	}

	if user.HasInvalidated(raw) {
		return nil, fail("revoked", domain.ErrTokenRevoked)
	}

	return user.Identity(claims), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", domain.ErrNoToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", domain.ErrNoToken
	}
	return raw, nil
}

func fail(reason string, err error) error {
	metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	return err
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(ctxKey{}).(*domain.Identity)
	return id
}
