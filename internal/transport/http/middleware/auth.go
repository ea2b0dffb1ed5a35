package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/marketplace/internal/authz"
	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/session"
	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the *domain.Identity.
const IdentityKey = "identity"

const (
	errUnauthorized       = "Not authorized, token failed"
	errNoToken            = "Not authorized, no token"
	errForbidden          = "Access denied"
	errServiceUnavailable = "Service temporarily unavailable"
)

// Authenticator resolves an Authorization header to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*domain.Identity, error)
}

// Authenticate stores the requester's identity under IdentityKey and in the
// request context. Store outages answer 503, everything else 401.
func Authenticate(guard Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := guard.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrStoreUnavailable):
				logger.ErrorContext(c.Request.Context(), "authenticate", "error", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errServiceUnavailable})
			case errors.Is(err, domain.ErrNoToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNoToken})
			default:
				logger.DebugContext(c.Request.Context(), "authentication rejected", "error", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			}
			return
		}

		c.Set(IdentityKey, id)
		c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRole runs after Authenticate and lets through identities holding
// at least one of roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := domain.NewRoleSet(roles...)
	return func(c *gin.Context) {
		id := session.FromContext(c.Request.Context())
		if err := authz.RequireAnyRole(id, allowed); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errForbidden})
			return
		}
		c.Next()
	}
}
