// Package token issues and verifies signed, time-limited bearer tokens.
// It is stateless: revocation is checked by the session guard, which has
// access to the credential store.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

type Service struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(key []byte, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{key: key, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a new HS256 token for userID. Every token carries a random jti
// so two logins within the same second still produce distinct strings.
func (s *Service) Issue(userID string) (domain.TokenClaims, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	id := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return domain.TokenClaims{}, fmt.Errorf("sign jwt: %w", err)
	}

	return domain.TokenClaims{
		Raw:       signed,
		UserID:    userID,
		TokenID:   id,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature and expiry only. It returns domain.ErrTokenExpired
// when now >= exp and domain.ErrTokenMalformed for everything else.
func (s *Service) Verify(raw string) (domain.TokenClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.TokenClaims{}, domain.ErrTokenExpired
		}
		return domain.TokenClaims{}, fmt.Errorf("%w: %w", domain.ErrTokenMalformed, err)
	}
	if claims.Subject == "" {
		return domain.TokenClaims{}, fmt.Errorf("%w: missing subject", domain.ErrTokenMalformed)
	}

	out := domain.TokenClaims{
		Raw:       raw,
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
