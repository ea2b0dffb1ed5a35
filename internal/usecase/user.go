package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type UserUsecase struct {
	users      repository.UserRepository
	bcryptCost int
	logger     *slog.Logger
}

func NewUserUsecase(users repository.UserRepository, bcryptCost int, logger *slog.Logger) *UserUsecase {
	return &UserUsecase{
		users:      users,
		bcryptCost: bcryptCost,
		logger:     logger.With("component", "user_usecase"),
	}
}

// GetProfile reads the requester's current record.
func (u *UserUsecase) GetProfile(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, id.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeErr("find user", err)
	}
	return user, nil
}

// ProfileInput fields left empty are not changed.
type ProfileInput struct {
	Name     string
	Phone    string
	Avatar   string
	Password string
}

func (u *UserUsecase) UpdateProfile(ctx context.Context, id *domain.Identity, in ProfileInput) (*domain.User, error) {
	upd := domain.ProfileUpdate{
		Name:   strings.TrimSpace(in.Name),
		Phone:  strings.TrimSpace(in.Phone),
		Avatar: strings.TrimSpace(in.Avatar),
	}
	if in.Password != "" {
		if len(in.Password) < domain.MinPasswordLength {
			return nil, domain.ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), u.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		upd.PasswordHash = string(hash)
	}

	user, err := u.users.UpdateProfile(ctx, id.ID, upd)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeErr("update profile", err)
	}
	return user, nil
}

// ListUsers returns every account, newest first.
func (u *UserUsecase) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := u.users.List(ctx)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

// DeleteUser removes another account. A missing target is reported before a
// self-delete attempt.
func (u *UserUsecase) DeleteUser(ctx context.Context, id *domain.Identity, targetID string) error {
	if _, err := u.users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return storeErr("find user", err)
	}
	if targetID == id.ID {
		return domain.ErrSelfDelete
	}

	if err := u.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return storeErr("delete user", err)
	}

	u.logger.InfoContext(ctx, "user deleted", "target_id", targetID, "by", id.ID)
	return nil
}
