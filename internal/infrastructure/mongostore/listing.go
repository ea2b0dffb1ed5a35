package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type listingDoc struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Price       float64   `bson:"price"`
	Category    string    `bson:"category"`
	Images      []string  `bson:"images"`
	Location    string    `bson:"location"`
	Condition   string    `bson:"condition"`
	SellerID    string    `bson:"seller_id"`
	IsActive    bool      `bson:"is_active"`
	Views       int       `bson:"views"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d *listingDoc) toDomain() *domain.Listing {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return &domain.Listing{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Category:    domain.Category(d.Category),
		Images:      images,
		Location:    d.Location,
		Condition:   domain.Condition(d.Condition),
		SellerID:    d.SellerID,
		IsActive:    d.IsActive,
		Views:       d.Views,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

var listingOrder = map[repository.ListingSort]bson.D{
	repository.SortNewest:    {{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
	repository.SortOldest:    {{Key: "created_at", Value: 1}, {Key: "_id", Value: -1}},
	repository.SortPriceAsc:  {{Key: "price", Value: 1}, {Key: "_id", Value: -1}},
	repository.SortPriceDesc: {{Key: "price", Value: -1}, {Key: "_id", Value: -1}},
	repository.SortMostViews: {{Key: "views", Value: -1}, {Key: "_id", Value: -1}},
}

type ListingRepository struct {
	col *mongo.Collection
}

var _ repository.ListingRepository = (*ListingRepository)(nil)

func (r *ListingRepository) Create(ctx context.Context, l *domain.Listing) (*domain.Listing, error) {
	now := time.Now().UTC()
	images := l.Images
	if images == nil {
		images = []string{}
	}
	doc := listingDoc{
		ID:          uuid.NewString(),
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Category:    string(l.Category),
		Images:      images,
		Location:    l.Location,
		Condition:   string(l.Condition),
		SellerID:    l.SellerID,
		IsActive:    l.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	doc, err := findOne[listingDoc](ctx, r.col, byID(id), domain.ErrListingNotFound)
	if err != nil {
		return nil, wrapListingErr("get listing", err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) IncrementViews(ctx context.Context, id string) (*domain.Listing, error) {
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}}
	doc, err := findOneAndUpdate[listingDoc](ctx, r.col, byID(id), update, domain.ErrListingNotFound)
	if err != nil {
		return nil, wrapListingErr("increment views", err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Update(ctx context.Context, id string, upd domain.ListingUpdate) (*domain.Listing, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now().UTC()}}
	if upd.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *upd.Title})
	}
	if upd.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *upd.Description})
	}
	if upd.Price != nil {
		set = append(set, bson.E{Key: "price", Value: *upd.Price})
	}
	if upd.Category != nil {
		set = append(set, bson.E{Key: "category", Value: string(*upd.Category)})
	}
	if upd.Location != nil {
		set = append(set, bson.E{Key: "location", Value: *upd.Location})
	}
	if upd.Condition != nil {
		set = append(set, bson.E{Key: "condition", Value: string(*upd.Condition)})
	}
	if upd.IsActive != nil {
		set = append(set, bson.E{Key: "is_active", Value: *upd.IsActive})
	}

	doc, err := findOneAndUpdate[listingDoc](ctx, r.col, byID(id), bson.D{{Key: "$set", Value: set}}, domain.ErrListingNotFound)
	if err != nil {
		return nil, wrapListingErr("update listing", err)
	}
	return doc.toDomain(), nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	return wrapListingErr("delete listing", deleteByID(ctx, r.col, id, domain.ErrListingNotFound))
}

func (r *ListingRepository) List(ctx context.Context, in repository.ListListingsInput) ([]*domain.Listing, int, error) {
	filter := listFilter(in)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	order, ok := listingOrder[in.Sort]
	if !ok {
		order = listingOrder[repository.SortNewest]
	}
	opts := options.Find().
		SetSort(order).
		SetSkip(int64(in.Offset)).
		SetLimit(int64(in.Limit))

	docs, err := findMany[listingDoc](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	return toListings(docs), int(total), nil
}

func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Listing, error) {
	opts := options.Find().SetSort(listingOrder[repository.SortNewest])
	docs, err := findMany[listingDoc](ctx, r.col, bson.D{{Key: "seller_id", Value: sellerID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list seller listings: %w", err)
	}
	return toListings(docs), nil
}

func (r *ListingRepository) CountByStatus(ctx context.Context) (int, int, error) {
	active, err := r.col.CountDocuments(ctx, bson.D{{Key: "is_active", Value: true}})
	if err != nil {
		return 0, 0, fmt.Errorf("count active listings: %w", err)
	}
	inactive, err := r.col.CountDocuments(ctx, bson.D{{Key: "is_active", Value: false}})
	if err != nil {
		return 0, 0, fmt.Errorf("count inactive listings: %w", err)
	}
	return int(active), int(inactive), nil
}

func toListings(docs []*listingDoc) []*domain.Listing {
	out := make([]*domain.Listing, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out
}

func wrapListingErr(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrListingNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// listFilter translates the list input into a find filter. Search matches
// title, category or description as a case-insensitive literal substring.
func listFilter(in repository.ListListingsInput) bson.D {
	filter := bson.D{}
	switch in.Status {
	case repository.StatusActive:
		filter = append(filter, bson.E{Key: "is_active", Value: true})
	case repository.StatusInactive:
		filter = append(filter, bson.E{Key: "is_active", Value: false})
	}
	if in.Search != "" {
		re := bson.Regex{Pattern: regexp.QuoteMeta(in.Search), Options: "i"}
		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "category", Value: re}},
			bson.D{{Key: "description", Value: re}},
		}})
	}
	if in.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: string(in.Category)})
	}
	if in.MinPrice != nil || in.MaxPrice != nil {
		price := bson.D{}
		if in.MinPrice != nil {
			price = append(price, bson.E{Key: "$gte", Value: *in.MinPrice})
		}
		if in.MaxPrice != nil {
			price = append(price, bson.E{Key: "$lte", Value: *in.MaxPrice})
		}
		filter = append(filter, bson.E{Key: "price", Value: price})
	}
	return filter
}
