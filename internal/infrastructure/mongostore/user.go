package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type userDoc struct {
	ID                string       `bson:"_id"`
	Email             string       `bson:"email"`
	PasswordHash      string       `bson:"password_hash"`
	Name              string       `bson:"name"`
	Phone             string       `bson:"phone"`
	Avatar            string       `bson:"avatar"`
	Roles             []string     `bson:"roles"`
	InvalidatedTokens []revokedDoc `bson:"invalidated_tokens"`
	CreatedAt         time.Time    `bson:"created_at"`
	UpdatedAt         time.Time    `bson:"updated_at"`
}

type revokedDoc struct {
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (d *userDoc) toDomain() (*domain.User, error) {
	roles, err := domain.ParseRoleSet(d.Roles)
	if err != nil {
		return nil, fmt.Errorf("decode user roles: %w", err)
	}
	u := &domain.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		Phone:        d.Phone,
		Avatar:       d.Avatar,
		Roles:        roles,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if len(d.InvalidatedTokens) > 0 {
		u.InvalidatedTokens = make([]domain.RevokedToken, len(d.InvalidatedTokens))
		for i, t := range d.InvalidatedTokens {
			u.InvalidatedTokens[i] = domain.RevokedToken{Token: t.Token, ExpiresAt: t.ExpiresAt}
		}
	}
	return u, nil
}

type UserRepository struct {
	col *mongo.Collection
}

var _ repository.UserRepository = (*UserRepository)(nil)

func byID(id string) bson.D { return bson.D{{Key: "_id", Value: id}} }

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	now := time.Now().UTC()
	doc := userDoc{
		ID:                uuid.NewString(),
		Email:             strings.ToLower(user.Email),
		PasswordHash:      user.PasswordHash,
		Name:              user.Name,
		Phone:             user.Phone,
		Avatar:            user.Avatar,
		Roles:             user.Roles.Strings(),
		InvalidatedTokens: []revokedDoc{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return doc.toDomain()
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := findOne[userDoc](ctx, r.col, byID(id), domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	doc, err := findOne[userDoc](ctx, r.col, bson.D{{Key: "email", Value: strings.ToLower(email)}}, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	docs, err := findMany[userDoc](ctx, r.col, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	for _, d := range docs {
		u, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	docs, err := findMany[userDoc](ctx, r.col, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*domain.User, 0, len(docs))
	for _, d := range docs {
		u, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *UserRepository) AppendInvalidatedToken(ctx context.Context, userID string, tok domain.RevokedToken) error {
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "invalidated_tokens.token", Value: bson.D{{Key: "$ne", Value: tok.Token}}},
	}
	update := bson.D{{Key: "$push", Value: bson.D{
		{Key: "invalidated_tokens", Value: revokedDoc{Token: tok.Token, ExpiresAt: tok.ExpiresAt.UTC()}},
	}}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("append invalidated token: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the token is already listed or the user is gone.
	n, err := r.col.CountDocuments(ctx, byID(userID))
	if err != nil {
		return fmt.Errorf("append invalidated token: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// PruneInvalidatedTokens reports the number of users whose list shrank, since
// $pull does not return how many array elements it removed.
func (r *UserRepository) PruneInvalidatedTokens(ctx context.Context, cutoff time.Time) (int, error) {
	expired := bson.D{{Key: "$lte", Value: cutoff.UTC()}}
	filter := bson.D{{Key: "invalidated_tokens.expires_at", Value: expired}}
	update := bson.D{{Key: "$pull", Value: bson.D{
		{Key: "invalidated_tokens", Value: bson.D{{Key: "expires_at", Value: expired}}},
	}}}

	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("prune invalidated tokens: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (r *UserRepository) AddRole(ctx context.Context, userID string, role domain.Role) (domain.RoleSet, error) {
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "roles", Value: bson.D{{Key: "$ne", Value: string(role)}}},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "roles", Value: string(role)}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}

	doc, err := findOneAndUpdate[userDoc](ctx, r.col, filter, update, domain.ErrRoleConflict)
	if err == nil {
		u, err := doc.toDomain()
		if err != nil {
			return 0, err
		}
		return u.Roles, nil
	}
	if !errors.Is(err, domain.ErrRoleConflict) {
		return 0, fmt.Errorf("add role: %w", err)
	}

	current, err := r.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return current.Roles, domain.ErrRoleConflict
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	for _, f := range []struct{ key, val string }{
		{"name", upd.Name},
		{"phone", upd.Phone},
		{"avatar", upd.Avatar},
		{"password_hash", upd.PasswordHash},
	} {
		if f.val != "" {
			set = append(set, bson.E{Key: f.key, Value: f.val})
		}
	}

	doc, err := findOneAndUpdate[userDoc](ctx, r.col, byID(userID), bson.D{{Key: "$set", Value: set}}, domain.ErrUserNotFound)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return doc.toDomain()
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if err := deleteByID(ctx, r.col, userID, domain.ErrUserNotFound); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
