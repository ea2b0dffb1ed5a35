package domain

import (
	"errors"
	"time"
)

var (
	// Authentication failures. All of them end the request with 401.
	ErrNoToken        = errors.New("no bearer token")
	ErrInvalidToken   = errors.New("token is invalid or expired")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenRevoked   = errors.New("token is no longer valid")
	ErrUserNotFound   = errors.New("user not found")

	// Authorization failures. 403.
	ErrRoleDenied    = errors.New("role denied")
	ErrNotAuthorized = errors.New("not authorized")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrRoleConflict       = errors.New("role already held")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrInvalidRole        = errors.New("invalid role")
	ErrRoleNotSelfService = errors.New("role cannot be self-granted")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")

	// ErrStoreUnavailable marks credential store failures so they are not
	// reported to clients as "please log in again".
	ErrStoreUnavailable = errors.New("store unavailable")
)

// MinPasswordLength matches the credential rule enforced at registration and on password change.
const MinPasswordLength = 6

type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Phone             string
	Avatar            string
	Roles             RoleSet
	InvalidatedTokens []RevokedToken
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RevokedToken is a logged-out token. ExpiresAt is the token's own expiry and
// only drives pruning: a listed token stays rejected until it is pruned, and
// by then Verify rejects it anyway.
type RevokedToken struct {
	Token     string
	ExpiresAt time.Time
}

func (u *User) HasInvalidated(raw string) bool {
	for _, t := range u.InvalidatedTokens {
		if t.Token == raw {
			return true
		}
	}
	return false
}

// Identity builds the trusted per-request view of u. It never carries the
// password hash or the revoked token list.
func (u *User) Identity(claims TokenClaims) *Identity {
	return &Identity{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Phone:  u.Phone,
		Avatar: u.Avatar,
		Roles:  u.Roles,
		Token:  claims,
	}
}

// Identity is the authenticated requester for the lifetime of one request.
type Identity struct {
	ID     string
	Email  string
	Name   string
	Phone  string
	Avatar string
	Roles  RoleSet
	Token  TokenClaims
}

type TokenClaims struct {
	Raw       string
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ProfileUpdate carries the profile fields to change. Empty strings keep the
// current value.
type ProfileUpdate struct {
	Name         string
	Phone        string
	Avatar       string
	PasswordHash string
}
