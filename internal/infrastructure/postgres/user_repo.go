package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// userColumns expects the users table aliased as u. Revoked tokens come back
// as two parallel arrays in insertion order.
const userColumns = `
	u.id, u.email, u.password_hash, u.name, u.phone, u.avatar, u.roles,
	u.created_at, u.updated_at,
	ARRAY(SELECT t.token FROM invalidated_tokens t WHERE t.user_id = u.id ORDER BY t.created_at, t.token),
	ARRAY(SELECT t.expires_at FROM invalidated_tokens t WHERE t.user_id = u.id ORDER BY t.created_at, t.token)`

type UserRepository struct {
	pool *pgxpool.Pool
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users AS u (email, password_hash, name, phone, avatar, roles)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING` + userColumns

	row := r.pool.QueryRow(ctx, query,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Name,
		user.Phone,
		user.Avatar,
		user.Roles.Strings(),
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if !validUUID(id) {
		return nil, domain.ErrUserNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users u WHERE u.id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users u WHERE LOWER(u.email) = LOWER($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	out := make(map[string]*domain.User, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT`+userColumns+` FROM users u WHERE u.id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return out, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+userColumns+` FROM users u ORDER BY u.created_at DESC, u.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) AppendInvalidatedToken(ctx context.Context, userID string, tok domain.RevokedToken) error {
	if !validUUID(userID) {
		return domain.ErrUserNotFound
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invalidated_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, token) DO NOTHING`,
		userID, tok.Token, tok.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("append invalidated token: %w", err)
	}
	return nil
}

func (r *UserRepository) PruneInvalidatedTokens(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invalidated_tokens WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune invalidated tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *UserRepository) AddRole(ctx context.Context, userID string, role domain.Role) (domain.RoleSet, error) {
	if !validUUID(userID) {
		return 0, domain.ErrUserNotFound
	}

	// The membership test and the append happen in one statement, so two
	// concurrent calls cannot both succeed or overwrite each other.
	var names []string
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET    roles      = array_append(roles, $2::text),
		       updated_at = NOW()
		WHERE  id = $1
		  AND  NOT ($2::text = ANY(roles))
		RETURNING roles`,
		userID, string(role),
	).Scan(&names)
	if err == nil {
		return domain.ParseRoleSet(names)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("add role: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT roles FROM users WHERE id = $1`, userID).Scan(&names)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("read roles: %w", err)
	}
	current, err := domain.ParseRoleSet(names)
	if err != nil {
		return 0, err
	}
	return current, domain.ErrRoleConflict
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.User, error) {
	if !validUUID(userID) {
		return nil, domain.ErrUserNotFound
	}
	query := `
		UPDATE users AS u
		SET    name          = COALESCE(NULLIF($2, ''), u.name),
		       phone         = COALESCE(NULLIF($3, ''), u.phone),
		       avatar        = COALESCE(NULLIF($4, ''), u.avatar),
		       password_hash = COALESCE(NULLIF($5, ''), u.password_hash),
		       updated_at    = NOW()
		WHERE  u.id = $1
		RETURNING` + userColumns

	row := r.pool.QueryRow(ctx, query, userID, upd.Name, upd.Phone, upd.Avatar, upd.PasswordHash)
	return scanUser(row)
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if !validUUID(userID) {
		return domain.ErrUserNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		roles     []string
		tokens    []string
		expiresAt []time.Time
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Avatar, &roles,
		&u.CreatedAt, &u.UpdatedAt, &tokens, &expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if u.Roles, err = domain.ParseRoleSet(roles); err != nil {
		return nil, fmt.Errorf("scan user roles: %w", err)
	}
	if len(tokens) > 0 {
		u.InvalidatedTokens = make([]domain.RevokedToken, len(tokens))
		for i, tok := range tokens {
			u.InvalidatedTokens[i] = domain.RevokedToken{Token: tok, ExpiresAt: expiresAt[i]}
		}
	}
	return &u, nil
}

func validUUID(id string) bool {
	return uuid.Validate(id) == nil
}
