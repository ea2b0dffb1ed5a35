package usecase_test

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/memory"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/objstore"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
)

type failingImages struct {
	objstore.ImageStore
	failAfter int

	mu   sync.Mutex
	puts int
}

func (f *failingImages) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) (string, error) {
	f.mu.Lock()
	if f.puts >= f.failAfter {
		f.mu.Unlock()
		return "", errors.New("bucket unavailable")
	}
	f.puts++
	f.mu.Unlock()
	return f.ImageStore.Put(ctx, key, r, size, ct)
}

type listingFixture struct {
	users    *memory.UserRepository
	images   *objstore.Memory
	listings *usecase.ListingUsecase
}

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()
	store := memory.NewStore()
	images := objstore.NewMemory("http://cdn.test")
	return &listingFixture{
		users:    store.Users(),
		images:   images,
		listings: usecase.NewListingUsecase(store.Listings(), store.Users(), images, discard),
	}
}

func (f *listingFixture) seller(t *testing.T, email string) *domain.Identity {
	t.Helper()
	id := seedUser(t, f.users, email, domain.RoleSeller)
	u, err := f.users.UpdateProfile(context.Background(), id.ID, domain.ProfileUpdate{Phone: "+1 555 0100"})
	if err != nil {
		t.Fatalf("set phone: %v", err)
	}
	return u.Identity(id.Token)
}

func (f *listingFixture) create(t *testing.T, id *domain.Identity, title string, price float64) *domain.Listing {
	t.Helper()
	l, err := f.listings.Create(context.Background(), id, usecase.CreateListingInput{
		Title: title, Description: "desc", Price: price, Category: "Mobiles", Location: "Town",
	}, nil)
	if err != nil {
		t.Fatalf("create %s: %v", title, err)
	}
	return l
}

func png(body string) usecase.ImageUpload {
	return usecase.ImageUpload{Body: strings.NewReader(body), Size: int64(len(body)), ContentType: "image/png"}
}

func TestCreate_StoresImagesAndDefaults(t *testing.T) {
	f := newListingFixture(t)
	seller := f.seller(t, "s@x.com")

	l, err := f.listings.Create(context.Background(), seller, usecase.CreateListingInput{
		Title: "Phone", Price: 100, Category: "Mobiles", Location: "Town",
	}, []usecase.ImageUpload{png("a"), png("b")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(l.Images) != 2 || !strings.HasPrefix(l.Images[0], "http://cdn.test/listings/"+seller.ID+"/") {
		t.Errorf("images = %v", l.Images)
	}
	if l.Condition != domain.ConditionGood || !l.IsActive || l.SellerID != seller.ID {
		t.Errorf("listing = %+v", l)
	}
	if f.images.Len() != 2 {
		t.Errorf("stored objects = %d, want 2", f.images.Len())
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newListingFixture(t)
	seller := f.seller(t, "s@x.com")
	buyer := seedUser(t, f.users, "b@x.com", domain.RoleBuyer)
	buyer.Phone = "123"
	noPhone := seedUser(t, f.users, "n@x.com", domain.RoleSeller)
	valid := usecase.CreateListingInput{Title: "T", Price: 1, Category: "Books", Location: "L"}
	ctx := context.Background()

	tests := []struct {
		name    string
		id      *domain.Identity
		in      usecase.CreateListingInput
		uploads []usecase.ImageUpload
		want    error
	}{
		{"buyer only", buyer, valid, nil, domain.ErrRoleDenied},
		{"no phone", noPhone, valid, nil, domain.ErrPhoneRequired},
		{"six images", seller, valid, []usecase.ImageUpload{png("1"), png("2"), png("3"), png("4"), png("5"), png("6")}, domain.ErrTooManyImages},
		{"bad category", seller, usecase.CreateListingInput{Title: "T", Category: "Boats"}, nil, domain.ErrInvalidCategory},
		{"bad condition", seller, usecase.CreateListingInput{Title: "T", Category: "Books", Condition: "Broken"}, nil, domain.ErrInvalidCondition},
		{"negative price", seller, usecase.CreateListingInput{Title: "T", Category: "Books", Price: -1}, nil, domain.ErrInvalidPrice},
		{"NaN price", seller, usecase.CreateListingInput{Title: "T", Category: "Books", Price: math.NaN()}, nil, domain.ErrInvalidPrice},
		{"infinite price", seller, usecase.CreateListingInput{Title: "T", Category: "Books", Price: math.Inf(1)}, nil, domain.ErrInvalidPrice},
		{"gif", seller, valid, []usecase.ImageUpload{{Body: strings.NewReader("g"), ContentType: "image/gif"}}, domain.ErrUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.listings.Create(ctx, tt.id, tt.in, tt.uploads)
			if !errors.Is(err, tt.want) {
				t.Errorf("want %v, got %v", tt.want, err)
			}
		})
	}
	if f.images.Len() != 0 {
		t.Errorf("rejected requests left %d objects behind", f.images.Len())
	}
}

func TestCreate_RemovesUploadedImagesWhenOneFails(t *testing.T) {
	store := memory.NewStore()
	mem := objstore.NewMemory("http://cdn.test")
	images := &failingImages{ImageStore: mem, failAfter: 2}
	uc := usecase.NewListingUsecase(store.Listings(), store.Users(), images, discard)

	id := seedUser(t, store.Users(), "s@x.com", domain.RoleSeller)
	id.Phone = "1"

	_, err := uc.Create(context.Background(), id, usecase.CreateListingInput{Title: "T", Category: "Books"},
		[]usecase.ImageUpload{png("1"), png("2"), png("3")})
	if err == nil {
		t.Fatal("expected error")
	}
	if mem.Len() != 0 {
		t.Errorf("objects left behind = %d", mem.Len())
	}
}

func TestUpdate_OwnerNonOwnerAdmin(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	owner := f.seller(t, "owner@x.com")
	other := f.seller(t, "other@x.com")
	admin := seedUser(t, f.users, "admin@x.com", domain.RoleAdmin)
	l := f.create(t, owner, "Phone", 100)

	price := 90.0
	if _, err := f.listings.Update(ctx, other, l.ID, domain.ListingUpdate{Price: &price}); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Errorf("non-owner: want ErrNotAuthorized, got %v", err)
	}

	got, err := f.listings.Update(ctx, owner, l.ID, domain.ListingUpdate{Price: &price})
	if err != nil || got.Price != 90 {
		t.Errorf("owner: got %v, %v", got, err)
	}

	title := "Admin edit"
	got, err = f.listings.Update(ctx, admin, l.ID, domain.ListingUpdate{Title: &title})
	if err != nil || got.Title != title {
		t.Errorf("admin: got %v, %v", got, err)
	}
}

func TestUpdate_RejectsNonFinitePrice(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	owner := f.seller(t, "owner@x.com")
	l := f.create(t, owner, "Phone", 100)

	for _, p := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5} {
		if _, err := f.listings.Update(ctx, owner, l.ID, domain.ListingUpdate{Price: &p}); !errors.Is(err, domain.ErrInvalidPrice) {
			t.Errorf("price %v: want ErrInvalidPrice, got %v", p, err)
		}
	}

	got, err := f.listings.Get(ctx, l.ID)
	if err != nil || got.Price != 100 {
		t.Errorf("stored listing changed: %v, %v", got, err)
	}
}

func TestUpdateAndDelete_NotFoundBeforeOwnership(t *testing.T) {
	f := newListingFixture(t)
	stranger := seedUser(t, f.users, "x@x.com", domain.RoleBuyer)
	ctx := context.Background()

	if _, err := f.listings.Update(ctx, stranger, "missing", domain.ListingUpdate{}); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("update: want ErrListingNotFound, got %v", err)
	}
	if err := f.listings.Delete(ctx, stranger, "missing"); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("delete: want ErrListingNotFound, got %v", err)
	}
}

func TestDelete_RemovesImages(t *testing.T) {
	f := newListingFixture(t)
	owner := f.seller(t, "owner@x.com")
	ctx := context.Background()

	l, err := f.listings.Create(ctx, owner, usecase.CreateListingInput{Title: "T", Category: "Books"}, []usecase.ImageUpload{png("1")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.listings.Delete(ctx, owner, l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.images.Len() != 0 {
		t.Errorf("objects left = %d", f.images.Len())
	}
}

func TestList_PublicHidesInactiveAndPaginates(t *testing.T) {
	f := newListingFixture(t)
	owner := f.seller(t, "owner@x.com")
	ctx := context.Background()

	for i := range 5 {
		f.create(t, owner, "Phone", float64(10*(i+1)))
	}
	hidden := f.create(t, owner, "Hidden phone", 1)
	if _, err := f.listings.Toggle(ctx, hidden.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	page, err := f.listings.List(ctx, usecase.ListingFilter{Search: "PHONE", Sort: "price", Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || page.Pages != 3 || page.Page != 2 {
		t.Errorf("page meta = total %d pages %d page %d", page.Total, page.Pages, page.Page)
	}
	if len(page.Listings) != 2 || page.Listings[0].Price != 30 {
		t.Fatalf("listings = %v", page.Listings)
	}
	if s := page.Listings[0].Seller; s == nil || s.Phone == "" || s.Email != "" {
		t.Errorf("public seller = %+v", s)
	}
}

func TestList_LimitIsCapped(t *testing.T) {
	f := newListingFixture(t)

	page, err := f.listings.List(context.Background(), usecase.ListingFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pages != 0 || page.Page != 1 {
		t.Errorf("empty page = %+v", page)
	}
}

func TestAdminList_StatusFilterAndCounts(t *testing.T) {
	f := newListingFixture(t)
	owner := f.seller(t, "owner@x.com")
	ctx := context.Background()

	f.create(t, owner, "A", 1)
	f.create(t, owner, "B", 2)
	c := f.create(t, owner, "C", 3)
	if _, err := f.listings.Toggle(ctx, c.ID); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	page, err := f.listings.AdminList(ctx, usecase.ListingFilter{Status: "inactive"})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if page.Total != 1 || page.Listings[0].ID != c.ID {
		t.Errorf("inactive page = %+v", page.Listings)
	}
	if page.ActiveCount != 2 || page.InactiveCount != 1 {
		t.Errorf("counts = %d/%d", page.ActiveCount, page.InactiveCount)
	}
}

func TestGet_CountsViewsAndShowsSellerEmail(t *testing.T) {
	f := newListingFixture(t)
	owner := f.seller(t, "owner@x.com")
	l := f.create(t, owner, "Phone", 1)
	ctx := context.Background()

	if _, err := f.listings.Get(ctx, l.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	got, err := f.listings.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Views != 2 {
		t.Errorf("views = %d, want 2", got.Views)
	}
	if got.Seller == nil || got.Seller.Email != "owner@x.com" {
		t.Errorf("seller = %+v", got.Seller)
	}

	if _, err := f.listings.Get(ctx, "missing"); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("want ErrListingNotFound, got %v", err)
	}
}

func TestMine(t *testing.T) {
	f := newListingFixture(t)
	a := f.seller(t, "a@x.com")
	b := f.seller(t, "b@x.com")
	f.create(t, a, "A1", 1)
	f.create(t, a, "A2", 1)
	f.create(t, b, "B1", 1)

	got, err := f.listings.Mine(context.Background(), a)
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("listings = %d, want 2", len(got))
	}
}
