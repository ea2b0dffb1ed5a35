package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listingColumns = `
	id, title, description, price, category, images, location, condition,
	seller_id, is_active, views, created_at, updated_at`

var listingOrder = map[repository.ListingSort]string{
	repository.SortNewest:    "created_at DESC, id DESC",
	repository.SortOldest:    "created_at ASC, id DESC",
	repository.SortPriceAsc:  "price ASC, id DESC",
	repository.SortPriceDesc: "price DESC, id DESC",
	repository.SortMostViews: "views DESC, id DESC",
}

type ListingRepository struct {
	pool *pgxpool.Pool
}

var _ repository.ListingRepository = (*ListingRepository)(nil)

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	query := `
		INSERT INTO listings (
			title, description, price, category, images, location, condition, seller_id, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING` + listingColumns

	row := r.pool.QueryRow(ctx, query,
		l.Title, l.Description, l.Price, string(l.Category), images,
		l.Location, string(l.Condition), l.SellerID, l.IsActive,
	)
	created, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return created, nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	if !validUUID(id) {
		return nil, domain.ErrListingNotFound
	}
	return scanListing(r.pool.QueryRow(ctx, `SELECT`+listingColumns+` FROM listings WHERE id = $1`, id))
}

func (r *ListingRepository) IncrementViews(ctx context.Context, id string) (*domain.Listing, error) {
	if !validUUID(id) {
		return nil, domain.ErrListingNotFound
	}
	return scanListing(r.pool.QueryRow(ctx,
		`UPDATE listings SET views = views + 1 WHERE id = $1 RETURNING`+listingColumns, id))
}

func (r *ListingRepository) Update(ctx context.Context, id string, upd domain.ListingUpdate) (*domain.Listing, error) {
	if !validUUID(id) {
		return nil, domain.ErrListingNotFound
	}

	args := []any{id}
	set := []string{"updated_at = NOW()"}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.Category != nil {
		add("category", string(*upd.Category))
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Condition != nil {
		add("condition", string(*upd.Condition))
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}

	query := fmt.Sprintf(`UPDATE listings SET %s WHERE id = $1 RETURNING`+listingColumns, strings.Join(set, ", "))
	return scanListing(r.pool.QueryRow(ctx, query, args...))
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return domain.ErrListingNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepository) List(ctx context.Context, in repository.ListListingsInput) ([]*domain.Listing, int, error) {
	var args []any
	where := []string{"TRUE"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch in.Status {
	case repository.StatusActive:
		where = append(where, "is_active")
	case repository.StatusInactive:
		where = append(where, "NOT is_active")
	}
	if in.Search != "" {
		p := arg("%" + escapeLike(in.Search) + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %s OR category ILIKE %s OR description ILIKE %s)", p, p, p))
	}
	if in.Category != "" {
		where = append(where, "category = "+arg(string(in.Category)))
	}
	if in.MinPrice != nil {
		where = append(where, "price >= "+arg(*in.MinPrice))
	}
	if in.MaxPrice != nil {
		where = append(where, "price <= "+arg(*in.MaxPrice))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	order, ok := listingOrder[in.Sort]
	if !ok {
		order = listingOrder[repository.SortNewest]
	}
	limit := arg(in.Limit)
	offset := arg(in.Offset)
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY %s LIMIT %s OFFSET %s`,
		listingColumns, cond, order, limit, offset)

	listings, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Listing, error) {
	if !validUUID(sellerID) {
		return []*domain.Listing{}, nil
	}
	return r.query(ctx,
		`SELECT`+listingColumns+` FROM listings WHERE seller_id = $1 ORDER BY created_at DESC, id DESC`, sellerID)
}

func (r *ListingRepository) CountByStatus(ctx context.Context) (int, int, error) {
	var active, inactive int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE NOT is_active)
		FROM listings`).Scan(&active, &inactive)
	if err != nil {
		return 0, 0, fmt.Errorf("count listings by status: %w", err)
	}
	return active, inactive, nil
}

func (r *ListingRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Listing, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := []*domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

func scanListing(row rowScanner) (*domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &l.Category, &l.Images, &l.Location, &l.Condition,
		&l.SellerID, &l.IsActive, &l.Views, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	return &l, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
