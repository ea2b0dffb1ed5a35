package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ErlanBelekov/marketplace/internal/authz"
	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/objstore"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize      = 12
	defaultAdminPageSize = 15
	maxPageSize          = 50
)

// SellerFinder is the subset of repository.UserRepository used to attach
// seller details to listings.
type SellerFinder interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

type ListingUsecase struct {
	listings repository.ListingRepository
	sellers  SellerFinder
	images   objstore.ImageStore
	logger   *slog.Logger
}

func NewListingUsecase(listings repository.ListingRepository, sellers SellerFinder, images objstore.ImageStore, logger *slog.Logger) *ListingUsecase {
	return &ListingUsecase{
		listings: listings,
		sellers:  sellers,
		images:   images,
		logger:   logger.With("component", "listing_usecase"),
	}
}

type ListingFilter struct {
	Search   string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Sort     string
	Page     int
	Limit    int
	Status   string // admin only: active, inactive or empty for all
}

type ListingPage struct {
	Listings []*domain.Listing
	Total    int
	Page     int
	Pages    int
}

type AdminListingPage struct {
	ListingPage
	ActiveCount   int
	InactiveCount int
}

// sellerFields selects which seller details a view exposes.
type sellerFields struct {
	email bool
	phone bool
	avatar bool
}

var (
	publicSellerFields = sellerFields{phone: true, avatar: true}
	detailSellerFields = sellerFields{email: true, phone: true, avatar: true}
	adminSellerFields  = sellerFields{email: true, phone: true}
)

// List is the public search. Only active listings are returned.
func (u *ListingUsecase) List(ctx context.Context, f ListingFilter) (*ListingPage, error) {
	in, page, err := listInput(f, defaultPageSize)
	if err != nil {
		return nil, err
	}
	in.Status = repository.StatusActive
	return u.page(ctx, in, page, publicSellerFields)
}

func (u *ListingUsecase) AdminList(ctx context.Context, f ListingFilter) (*AdminListingPage, error) {
	in, page, err := listInput(f, defaultAdminPageSize)
	if err != nil {
		return nil, err
	}
	switch s := repository.ListingStatus(f.Status); s {
	case repository.StatusActive, repository.StatusInactive:
		in.Status = s
	default:
		in.Status = repository.StatusAll
	}

	result, err := u.page(ctx, in, page, adminSellerFields)
	if err != nil {
		return nil, err
	}
	active, inactive, err := u.listings.CountByStatus(ctx)
	if err != nil {
		return nil, storeErr("count listings", err)
	}
	return &AdminListingPage{ListingPage: *result, ActiveCount: active, InactiveCount: inactive}, nil
}

func listInput(f ListingFilter, defaultLimit int) (repository.ListListingsInput, int, error) {
	in := repository.ListListingsInput{
		Search:   strings.TrimSpace(f.Search),
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
		Sort:     repository.ListingSort(f.Sort),
	}
	if f.Category != "" {
		c := domain.Category(f.Category)
		if !c.Valid() {
			return in, 0, domain.ErrInvalidCategory
		}
		in.Category = c
	}
	if !in.Sort.Valid() {
		in.Sort = repository.SortNewest
	}

	page := max(f.Page, 1)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxPageSize)

	in.Limit = limit
	in.Offset = (page - 1) * limit
	return in, page, nil
}

func (u *ListingUsecase) page(ctx context.Context, in repository.ListListingsInput, page int, fields sellerFields) (*ListingPage, error) {
	listings, total, err := u.listings.List(ctx, in)
	if err != nil {
		return nil, storeErr("list listings", err)
	}
	if err := u.attachSellers(ctx, listings, fields); err != nil {
		return nil, err
	}
	return &ListingPage{
		Listings: listings,
		Total:    total,
		Page:     page,
		Pages:    (total + in.Limit - 1) / in.Limit,
	}, nil
}

// Get returns one listing and counts the view.
func (u *ListingUsecase) Get(ctx context.Context, listingID string) (*domain.Listing, error) {
	l, err := u.listings.IncrementViews(ctx, listingID)
	if err != nil {
		return nil, listingErr("get listing", err)
	}
	if err := u.attachSellers(ctx, []*domain.Listing{l}, detailSellerFields); err != nil {
		return nil, err
	}
	return l, nil
}

type CreateListingInput struct {
	Title       string
	Description string
	Price       float64
	Category    string
	Location    string
	Condition   string
}

type ImageUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// Create posts a listing for a seller or admin who has a phone number on
// their profile. Images are stored before the listing and removed again if
// the listing cannot be saved.
func (u *ListingUsecase) Create(ctx context.Context, id *domain.Identity, in CreateListingInput, uploads []ImageUpload) (*domain.Listing, error) {
	if err := authz.RequireAnyRole(id, domain.NewRoleSet(domain.RoleSeller, domain.RoleAdmin)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id.Phone) == "" {
		return nil, domain.ErrPhoneRequired
	}
	if len(uploads) > domain.MaxListingImages {
		return nil, domain.ErrTooManyImages
	}

	category := domain.Category(in.Category)
	if !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	condition := domain.ConditionGood
	if in.Condition != "" {
		condition = domain.Condition(in.Condition)
		if !condition.Valid() {
			return nil, domain.ErrInvalidCondition
		}
	}
	if !domain.ValidPrice(in.Price) {
		return nil, domain.ErrInvalidPrice
	}

	exts := make([]string, len(uploads))
	for i, up := range uploads {
		ext, ok := objstore.ImageExtension(up.ContentType)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedImage, up.ContentType)
		}
		exts[i] = ext
	}

	urls, err := u.storeImages(ctx, id.ID, uploads, exts)
	if err != nil {
		return nil, err
	}

	created, err := u.listings.Create(ctx, &domain.Listing{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    category,
		Images:      urls,
		Location:    strings.TrimSpace(in.Location),
		Condition:   condition,
		SellerID:    id.ID,
		IsActive:    true,
	})
	if err != nil {
		u.removeImages(ctx, urls)
		return nil, storeErr("create listing", err)
	}

	u.logger.InfoContext(ctx, "listing created", "listing_id", created.ID, "user_id", id.ID, "images", len(urls))
	return created, nil
}

// Update changes a listing owned by the requester, or any listing for an
// admin. A missing listing is reported before an ownership failure.
func (u *ListingUsecase) Update(ctx context.Context, id *domain.Identity, listingID string, upd domain.ListingUpdate) (*domain.Listing, error) {
	if _, err := u.authorizeOwner(ctx, id, listingID); err != nil {
		return nil, err
	}
	if upd.Category != nil && !upd.Category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	if upd.Condition != nil && !upd.Condition.Valid() {
		return nil, domain.ErrInvalidCondition
	}
	if upd.Price != nil && !domain.ValidPrice(*upd.Price) {
		return nil, domain.ErrInvalidPrice
	}

	updated, err := u.listings.Update(ctx, listingID, upd)
	if err != nil {
		return nil, listingErr("update listing", err)
	}
	return updated, nil
}

// Delete removes a listing owned by the requester, or any listing for an admin.
func (u *ListingUsecase) Delete(ctx context.Context, id *domain.Identity, listingID string) error {
	l, err := u.authorizeOwner(ctx, id, listingID)
	if err != nil {
		return err
	}
	return u.delete(ctx, l)
}

func (u *ListingUsecase) authorizeOwner(ctx context.Context, id *domain.Identity, listingID string) (*domain.Listing, error) {
	l, err := u.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, listingErr("get listing", err)
	}
	if err := authz.RequireOwnerOrRole(id, l.SellerID, authz.Escalated); err != nil {
		return nil, err
	}
	return l, nil
}

// Mine lists every listing of the requester, active or not, newest first.
func (u *ListingUsecase) Mine(ctx context.Context, id *domain.Identity) ([]*domain.Listing, error) {
	listings, err := u.listings.ListBySeller(ctx, id.ID)
	if err != nil {
		return nil, storeErr("list seller listings", err)
	}
	return listings, nil
}

// Toggle flips whether a listing is shown publicly.
func (u *ListingUsecase) Toggle(ctx context.Context, listingID string) (*domain.Listing, error) {
	l, err := u.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, listingErr("get listing", err)
	}
	active := !l.IsActive
	updated, err := u.listings.Update(ctx, listingID, domain.ListingUpdate{IsActive: &active})
	if err != nil {
		return nil, listingErr("toggle listing", err)
	}
	u.logger.InfoContext(ctx, "listing toggled", "listing_id", listingID, "is_active", active)
	return updated, nil
}

func (u *ListingUsecase) AdminDelete(ctx context.Context, listingID string) error {
	l, err := u.listings.GetByID(ctx, listingID)
	if err != nil {
		return listingErr("get listing", err)
	}
	return u.delete(ctx, l)
}

func (u *ListingUsecase) delete(ctx context.Context, l *domain.Listing) error {
	if err := u.listings.Delete(ctx, l.ID); err != nil {
		return listingErr("delete listing", err)
	}
	u.removeImages(ctx, l.Images)
	return nil
}

// storeImages uploads concurrently and keeps the input order. On failure every
// image that did get stored is removed again.
func (u *ListingUsecase) storeImages(ctx context.Context, userID string, uploads []ImageUpload, exts []string) ([]string, error) {
	urls := make([]string, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	for i, up := range uploads {
		g.Go(func() error {
			key := fmt.Sprintf("listings/%s/%s%s", userID, uuid.NewString(), exts[i])
			url, err := u.images.Put(gctx, key, up.Body, up.Size, up.ContentType)
			if err != nil {
				return fmt.Errorf("store image %d: %w", i, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		u.removeImages(ctx, slices.DeleteFunc(urls, func(s string) bool { return s == "" }))
		return nil, err
	}
	return urls, nil
}

// removeImages logs failures and carries on.
func (u *ListingUsecase) removeImages(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := u.images.Delete(ctx, url); err != nil {
			u.logger.WarnContext(ctx, "remove image", "url", url, "error", err)
		}
	}
}

func (u *ListingUsecase) attachSellers(ctx context.Context, listings []*domain.Listing, fields sellerFields) error {
	if len(listings) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(listings))
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.SellerID]; !ok {
			seen[l.SellerID] = struct{}{}
			ids = append(ids, l.SellerID)
		}
	}

	sellers, err := u.sellers.FindByIDs(ctx, ids)
	if err != nil {
		return storeErr("find sellers", err)
	}
	for _, l := range listings {
		s, ok := sellers[l.SellerID]
		if !ok {
			continue
		}
		summary := &domain.SellerSummary{ID: s.ID, Name: s.Name}
		if fields.email {
			summary.Email = s.Email
		}
		if fields.phone {
			summary.Phone = s.Phone
		}
		if fields.avatar {
			summary.Avatar = s.Avatar
		}
		l.Seller = summary
	}
	return nil
}

func listingErr(op string, err error) error {
	if errors.Is(err, domain.ErrListingNotFound) {
		return err
	}
	return storeErr(op, err)
}
