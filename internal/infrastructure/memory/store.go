// Package memory is an in-process store used with STORE_DRIVER=memory and in
// tests. A single mutex serializes every operation, which gives the same
// per-call atomicity the database stores provide.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	listings map[string]*domain.Listing
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		listings: make(map[string]*domain.Listing),
		now:      time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// Users returns the store as a repository.UserRepository.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Listings returns the store as a repository.ListingRepository.
func (s *Store) Listings() *ListingRepository { return &ListingRepository{s: s} }

type UserRepository struct{ s *Store }

var _ repository.UserRepository = (*UserRepository)(nil)

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.InvalidatedTokens = append([]domain.RevokedToken(nil), u.InvalidatedTokens...)
	return &c
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return nil, domain.ErrDuplicateEmail
		}
	}

	c := copyUser(user)
	c.ID = uuid.NewString()
	c.Email = email
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.users[c.ID] = c
	return copyUser(c), nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepository) FindByIDs(_ context.Context, ids []string) (map[string]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = copyUser(u)
		}
	}
	return out, nil
}

func (r *UserRepository) List(_ context.Context) ([]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *UserRepository) AppendInvalidatedToken(_ context.Context, userID string, tok domain.RevokedToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.HasInvalidated(tok.Token) {
		return nil
	}
	u.InvalidatedTokens = append(u.InvalidatedTokens, tok)
	return nil
}

func (r *UserRepository) PruneInvalidatedTokens(_ context.Context, cutoff time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	pruned := 0
	for _, u := range r.s.users {
		kept := u.InvalidatedTokens[:0]
		for _, t := range u.InvalidatedTokens {
			if t.ExpiresAt.After(cutoff) {
				kept = append(kept, t)
				continue
			}
			pruned++
		}
		u.InvalidatedTokens = kept
	}
	return pruned, nil
}

func (r *UserRepository) AddRole(_ context.Context, userID string, role domain.Role) (domain.RoleSet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if u.Roles.Has(role) {
		return u.Roles, domain.ErrRoleConflict
	}
	u.Roles = u.Roles.Add(role)
	u.UpdatedAt = r.s.now()
	return u.Roles, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if upd.Name != "" {
		u.Name = upd.Name
	}
	if upd.Phone != "" {
		u.Phone = upd.Phone
	}
	if upd.Avatar != "" {
		u.Avatar = upd.Avatar
	}
	if upd.PasswordHash != "" {
		u.PasswordHash = upd.PasswordHash
	}
	u.UpdatedAt = r.s.now()
	return copyUser(u), nil
}

func (r *UserRepository) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.users, userID)
	return nil
}
