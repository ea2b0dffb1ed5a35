package repository

import (
	"context"

	"github.com/ErlanBelekov/marketplace/internal/domain"
)

type ListingStatus string

const (
	StatusAll      ListingStatus = ""
	StatusActive   ListingStatus = "active"
	StatusInactive ListingStatus = "inactive"
)

// ListingSort values are whitelisted; anything else falls back to SortNewest.
type ListingSort string

const (
	SortNewest    ListingSort = "-createdAt"
	SortOldest    ListingSort = "createdAt"
	SortPriceAsc  ListingSort = "price"
	SortPriceDesc ListingSort = "-price"
	SortMostViews ListingSort = "-views"
)

func (s ListingSort) Valid() bool {
	switch s {
	case SortNewest, SortOldest, SortPriceAsc, SortPriceDesc, SortMostViews:
		return true
	}
	return false
}

type ListListingsInput struct {
	Search   string // case-insensitive match on title, category, description
	Category domain.Category
	MinPrice *float64
	MaxPrice *float64
	Status   ListingStatus
	Sort     ListingSort
	Offset   int
	Limit    int
}

type ListingRepository interface {
	Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error)
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	// IncrementViews bumps the view counter and returns the updated listing.
	IncrementViews(ctx context.Context, id string) (*domain.Listing, error)
	Update(ctx context.Context, id string, update domain.ListingUpdate) (*domain.Listing, error)
	Delete(ctx context.Context, id string) error
	// List returns one page of matches plus the total match count.
	List(ctx context.Context, input ListListingsInput) ([]*domain.Listing, int, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*domain.Listing, error)
	CountByStatus(ctx context.Context) (active, inactive int, err error)
}
