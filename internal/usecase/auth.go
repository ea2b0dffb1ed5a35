package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/email"
	"github.com/ErlanBelekov/marketplace/internal/metrics"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer is the subset of token.Service the auth flows need.
type TokenIssuer interface {
	Issue(userID string) (domain.TokenClaims, error)
	TTL() time.Duration
}

type AuthUsecase struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	email      email.Sender
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

func NewAuthUsecase(users repository.UserRepository, tokens TokenIssuer, sender email.Sender, bcryptCost int, logger *slog.Logger) *AuthUsecase {
	return &AuthUsecase{
		users:      users,
		tokens:     tokens,
		email:      sender,
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     logger.With("component", "auth_usecase"),
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Roles    []string // empty means buyer
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *domain.User
	Token domain.TokenClaims
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if len(in.Password) < domain.MinPasswordLength {
		return nil, domain.ErrWeakPassword
	}
	roles, err := registrationRoles(in.Roles)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := u.users.Create(ctx, &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		Roles:        roles,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, storeErr("create user", err)
	}

	claims, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	subject, body := email.Welcome(user.Name)
	if err := u.email.Send(ctx, user.Email, subject, body); err != nil {
		u.logger.WarnContext(ctx, "welcome email", "user_id", user.ID, "error", err)
	}

	u.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "roles", user.Roles.String())
	return &Session{User: user, Token: claims}, nil
}

// registrationRoles defaults to buyer and refuses anything that is not self-service.
func registrationRoles(names []string) (domain.RoleSet, error) {
	if len(names) == 0 {
		return domain.NewRoleSet(domain.RoleBuyer), nil
	}
	var roles domain.RoleSet
	for _, n := range names {
		r, err := domain.ParseRole(n)
		if err != nil {
			return 0, err
		}
		if !r.SelfService() {
			return 0, domain.ErrRoleNotSelfService
		}
		roles = roles.Add(r)
	}
	return roles, nil
}

// Login returns ErrInvalidCredentials for an unknown email and for a wrong
// password alike.
func (u *AuthUsecase) Login(ctx context.Context, emailAddr, password string) (*Session, error) {
	user, err := u.users.FindByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, storeErr("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	claims, err := u.tokens.Issue(user.ID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return &Session{User: user, Token: claims}, nil
}

// Logout adds raw to the requester's invalidated tokens. Repeating it is a
// no-op. The stored expiry is the token's own when known, otherwise an upper
// bound of now plus the token TTL.
func (u *AuthUsecase) Logout(ctx context.Context, id *domain.Identity, raw string) error {
	if id == nil {
		return domain.ErrNotAuthorized
	}

	expiresAt := u.now().Add(u.tokens.TTL())
	if id.Token.Raw == raw && !id.Token.ExpiresAt.IsZero() {
		expiresAt = id.Token.ExpiresAt
	}

	err := u.users.AppendInvalidatedToken(ctx, id.ID, domain.RevokedToken{Token: raw, ExpiresAt: expiresAt})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return storeErr("invalidate token", err)
	}

	metrics.LogoutsTotal.Inc()
	u.logger.InfoContext(ctx, "token invalidated", "user_id", id.ID)
	return nil
}

// AddRole grants the requester a self-service role they do not hold yet.
func (u *AuthUsecase) AddRole(ctx context.Context, id *domain.Identity, roleName string) (domain.RoleSet, error) {
	if id == nil {
		return 0, domain.ErrNotAuthorized
	}
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return 0, err
	}
	if !role.SelfService() {
		return 0, domain.ErrRoleNotSelfService
	}
	if id.Roles.Has(role) {
		return id.Roles, domain.ErrRoleConflict
	}

	roles, err := u.users.AddRole(ctx, id.ID, role)
	if err != nil {
		if errors.Is(err, domain.ErrRoleConflict) || errors.Is(err, domain.ErrUserNotFound) {
			return roles, err
		}
		return 0, storeErr("add role", err)
	}

	u.logger.InfoContext(ctx, "role added", "user_id", id.ID, "role", role)
	return roles, nil
}

// storeErr marks an unexpected repository failure as ErrStoreUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
