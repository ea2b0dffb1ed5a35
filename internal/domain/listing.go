package domain

import (
	"errors"
	"math"
	"time"
)

var (
	ErrListingNotFound  = errors.New("listing not found")
	ErrPhoneRequired    = errors.New("add a phone number to your profile before posting an ad")
	ErrTooManyImages    = errors.New("too many images")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidPrice     = errors.New("price must be a finite, non-negative number")
)

const MaxListingImages = 5

// ValidPrice rejects negative prices and the NaN and infinities that
// strconv.ParseFloat accepts from form input.
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryCars        Category = "Cars"
	CategoryMobiles     Category = "Mobiles"
	CategoryFurniture   Category = "Furniture"
	CategoryFashion     Category = "Fashion"
	CategoryBooks       Category = "Books"
	CategorySports      Category = "Sports"
	CategoryOther       Category = "Other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryElectronics, CategoryCars, CategoryMobiles, CategoryFurniture,
		CategoryFashion, CategoryBooks, CategorySports, CategoryOther:
		return true
	}
	return false
}

type Condition string

const (
	ConditionNew     Condition = "New"
	ConditionLikeNew Condition = "Like New"
	ConditionGood    Condition = "Good"
	ConditionFair    Condition = "Fair"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair:
		return true
	}
	return false
}

type Listing struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Category    Category
	Images      []string
	Location    string
	Condition   Condition
	SellerID    string
	Seller      *SellerSummary // populated on read, never stored
	IsActive    bool
	Views       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SellerSummary is the public slice of a user shown next to a listing.
type SellerSummary struct {
	ID     string
	Name   string
	Email  string
	Phone  string
	Avatar string
}

// ListingUpdate holds the mutable listing fields. Nil means unchanged.
type ListingUpdate struct {
	Title       *string
	Description *string
	Price       *float64
	Category    *Category
	Location    *string
	Condition   *Condition
	IsActive    *bool
}
