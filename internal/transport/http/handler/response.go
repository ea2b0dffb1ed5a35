package handler

import (
	"time"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
)

type userResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Avatar    string         `json:"avatar"`
	Roles     domain.RoleSet `json:"roles"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Avatar:    u.Avatar,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
	}
}

func identityResponse(id *domain.Identity) userResponse {
	return userResponse{
		ID:     id.ID,
		Name:   id.Name,
		Email:  id.Email,
		Phone:  id.Phone,
		Avatar: id.Avatar,
		Roles:  id.Roles,
	}
}

type sessionResponse struct {
	userResponse
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toSessionResponse(s *usecase.Session) sessionResponse {
	return sessionResponse{
		userResponse: toUserResponse(s.User),
		Token:        s.Token.Raw,
		ExpiresAt:    s.Token.ExpiresAt,
	}
}

type sellerResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type listingResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       float64          `json:"price"`
	Category    domain.Category  `json:"category"`
	Images      []string         `json:"images"`
	Location    string           `json:"location"`
	Condition   domain.Condition `json:"condition"`
	SellerID    string           `json:"seller_id"`
	Seller      *sellerResponse  `json:"seller,omitempty"`
	IsActive    bool             `json:"is_active"`
	Views       int              `json:"views"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toListingResponse(l *domain.Listing) listingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	resp := listingResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Category:    l.Category,
		Images:      images,
		Location:    l.Location,
		Condition:   l.Condition,
		SellerID:    l.SellerID,
		IsActive:    l.IsActive,
		Views:       l.Views,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if s := l.Seller; s != nil {
		resp.Seller = &sellerResponse{ID: s.ID, Name: s.Name, Email: s.Email, Phone: s.Phone, Avatar: s.Avatar}
	}
	return resp
}

func toListingResponses(ls []*domain.Listing) []listingResponse {
	out := make([]listingResponse, len(ls))
	for i, l := range ls {
		out[i] = toListingResponse(l)
	}
	return out
}

type listingPageResponse struct {
	Products []listingResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
}

func toListingPageResponse(p *usecase.ListingPage) listingPageResponse {
	return listingPageResponse{
		Products: toListingResponses(p.Listings),
		Total:    p.Total,
		Page:     p.Page,
		Pages:    p.Pages,
	}
}

type adminListingPageResponse struct {
	listingPageResponse
	ActiveCount   int `json:"active_count"`
	InactiveCount int `json:"inactive_count"`
}
