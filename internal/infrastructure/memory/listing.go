package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/google/uuid"
)

type ListingRepository struct{ s *Store }

var _ repository.ListingRepository = (*ListingRepository)(nil)

func copyListing(l *domain.Listing) *domain.Listing {
	c := *l
	c.Images = append([]string(nil), l.Images...)
	c.Seller = nil
	return &c
}

func (r *ListingRepository) Create(_ context.Context, l *domain.Listing) (*domain.Listing, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyListing(l)
	c.ID = uuid.NewString()
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.listings[c.ID] = c
	return copyListing(c), nil
}

func (r *ListingRepository) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return copyListing(l), nil
}

func (r *ListingRepository) IncrementViews(_ context.Context, id string) (*domain.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	l.Views++
	return copyListing(l), nil
}

func (r *ListingRepository) Update(_ context.Context, id string, upd domain.ListingUpdate) (*domain.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	if upd.Title != nil {
		l.Title = *upd.Title
	}
	if upd.Description != nil {
		l.Description = *upd.Description
	}
	if upd.Price != nil {
		l.Price = *upd.Price
	}
	if upd.Category != nil {
		l.Category = *upd.Category
	}
	if upd.Location != nil {
		l.Location = *upd.Location
	}
	if upd.Condition != nil {
		l.Condition = *upd.Condition
	}
	if upd.IsActive != nil {
		l.IsActive = *upd.IsActive
	}
	l.UpdatedAt = r.s.now()
	return copyListing(l), nil
}

func (r *ListingRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(r.s.listings, id)
	return nil
}

func (r *ListingRepository) List(_ context.Context, in repository.ListListingsInput) ([]*domain.Listing, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*domain.Listing
	for _, l := range r.s.listings {
		if matches(l, in) {
			matched = append(matched, l)
		}
	}
	sortListings(matched, in.Sort)

	total := len(matched)
	start := min(in.Offset, total)
	end := total
	if in.Limit > 0 {
		end = min(start+in.Limit, total)
	}

	out := make([]*domain.Listing, 0, end-start)
	for _, l := range matched[start:end] {
		out = append(out, copyListing(l))
	}
	return out, total, nil
}

func (r *ListingRepository) ListBySeller(_ context.Context, sellerID string) ([]*domain.Listing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*domain.Listing{}
	for _, l := range r.s.listings {
		if l.SellerID == sellerID {
			out = append(out, copyListing(l))
		}
	}
	sortListings(out, repository.SortNewest)
	return out, nil
}

func (r *ListingRepository) CountByStatus(_ context.Context) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var active, inactive int
	for _, l := range r.s.listings {
		if l.IsActive {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive, nil
}

func matches(l *domain.Listing, in repository.ListListingsInput) bool {
	switch in.Status {
	case repository.StatusActive:
		if !l.IsActive {
			return false
		}
	case repository.StatusInactive:
		if l.IsActive {
			return false
		}
	}
	if in.Category != "" && l.Category != in.Category {
		return false
	}
	if in.MinPrice != nil && l.Price < *in.MinPrice {
		return false
	}
	if in.MaxPrice != nil && l.Price > *in.MaxPrice {
		return false
	}
	if in.Search != "" {
		q := strings.ToLower(in.Search)
		if !strings.Contains(strings.ToLower(l.Title), q) &&
			!strings.Contains(strings.ToLower(string(l.Category)), q) &&
			!strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
	}
	return true
}

func sortListings(ls []*domain.Listing, by repository.ListingSort) {
	var less func(a, b *domain.Listing) bool
	switch by {
	case repository.SortOldest:
		less = func(a, b *domain.Listing) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case repository.SortPriceAsc:
		less = func(a, b *domain.Listing) bool { return a.Price < b.Price }
	case repository.SortPriceDesc:
		less = func(a, b *domain.Listing) bool { return a.Price > b.Price }
	case repository.SortMostViews:
		less = func(a, b *domain.Listing) bool { return a.Views > b.Views }
	default:
		less = func(a, b *domain.Listing) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(ls, func(i, j int) bool {
		if less(ls[i], ls[j]) {
			return true
		}
		if less(ls[j], ls[i]) {
			return false
		}
		return ls[i].ID > ls[j].ID
	})
}
