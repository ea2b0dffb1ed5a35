package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/objstore"
	"github.com/ErlanBelekov/marketplace/internal/session"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
	"github.com/gin-gonic/gin"
)

// MaxImageBytes caps a single uploaded image.
const MaxImageBytes = 5 << 20

const errImageTooLarge = "Each image must be 5MB or smaller"

type listingUsecaser interface {
	List(ctx context.Context, f usecase.ListingFilter) (*usecase.ListingPage, error)
	AdminList(ctx context.Context, f usecase.ListingFilter) (*usecase.AdminListingPage, error)
	Get(ctx context.Context, listingID string) (*domain.Listing, error)
	Create(ctx context.Context, id *domain.Identity, in usecase.CreateListingInput, uploads []usecase.ImageUpload) (*domain.Listing, error)
	Update(ctx context.Context, id *domain.Identity, listingID string, upd domain.ListingUpdate) (*domain.Listing, error)
	Delete(ctx context.Context, id *domain.Identity, listingID string) error
	Mine(ctx context.Context, id *domain.Identity) ([]*domain.Listing, error)
	Toggle(ctx context.Context, listingID string) (*domain.Listing, error)
	AdminDelete(ctx context.Context, listingID string) error
}

type ListingHandler struct {
	uc     listingUsecaser
	logger *slog.Logger
}

func NewListingHandler(uc listingUsecaser, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{uc: uc, logger: logger.With("component", "listing_handler")}
}

type listingQuery struct {
	Search   string   `form:"search"`
	Category string   `form:"category"`
	MinPrice *float64 `form:"minPrice" binding:"omitempty,min=0"`
	MaxPrice *float64 `form:"maxPrice" binding:"omitempty,min=0"`
	Sort     string   `form:"sort"`
	Page     int      `form:"page"     binding:"omitempty,min=1"`
	Limit    int      `form:"limit"    binding:"omitempty,min=1"`
	Status   string   `form:"status"   binding:"omitempty,oneof=active inactive all"`
}

func (q listingQuery) filter() usecase.ListingFilter {
	return usecase.ListingFilter{
		Search:   q.Search,
		Category: q.Category,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Sort:     q.Sort,
		Page:     q.Page,
		Limit:    q.Limit,
		Status:   q.Status,
	}
}

type createListingForm struct {
	Title       string   `form:"title"       binding:"required,max=200"`
	Description string   `form:"description" binding:"required,max=5000"`
	Price       *float64 `form:"price"       binding:"required"`
	Category    string   `form:"category"    binding:"required"`
	Location    string   `form:"location"    binding:"required,max=200"`
	Condition   string   `form:"condition"`
}

type updateListingRequest struct {
	Title       *string           `json:"title"       binding:"omitempty,min=1,max=200"`
	Description *string           `json:"description" binding:"omitempty,max=5000"`
	Price       *float64          `json:"price"`
	Category    *domain.Category  `json:"category"`
	Location    *string           `json:"location"    binding:"omitempty,max=200"`
	Condition   *domain.Condition `json:"condition"`
	IsActive    *bool             `json:"is_active"`
}

// GET /api/products
func (h *ListingHandler) List(c *gin.Context) {
	var q listingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.uc.List(c.Request.Context(), q.filter())
	if err != nil {
		writeError(c, h.logger, "list listings", err)
		return
	}
	c.JSON(http.StatusOK, toListingPageResponse(page))
}

// GET /api/products/admin/all
func (h *ListingHandler) AdminList(c *gin.Context) {
	var q listingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.uc.AdminList(c.Request.Context(), q.filter())
	if err != nil {
		writeError(c, h.logger, "admin list listings", err)
		return
	}
	c.JSON(http.StatusOK, adminListingPageResponse{
		listingPageResponse: toListingPageResponse(&page.ListingPage),
		ActiveCount:         page.ActiveCount,
		InactiveCount:       page.InactiveCount,
	})
}

// GET /api/products/:id
func (h *ListingHandler) Get(c *gin.Context) {
	l, err := h.uc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get listing", err)
		return
	}
	c.JSON(http.StatusOK, toListingResponse(l))
}

// POST /api/products
// Multipart form with the listing fields and up to five "images" files.
func (h *ListingHandler) Create(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	var form createListingForm
	if err := c.ShouldBind(&form); err != nil {
		badRequest(c, err)
		return
	}
	if !domain.ValidPrice(*form.Price) {
		writeError(c, h.logger, "create listing", domain.ErrInvalidPrice)
		return
	}

	var files []*multipart.FileHeader
	if mf, err := c.MultipartForm(); err == nil {
		files = mf.File["images"]
	} else if !errors.Is(err, http.ErrNotMultipart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidForm})
		return
	}
	if len(files) > domain.MaxListingImages {
		writeError(c, h.logger, "create listing", domain.ErrTooManyImages)
		return
	}

	uploads, closeAll, err := openUploads(files)
	defer closeAll()
	if err != nil {
		if errors.Is(err, errTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errImageTooLarge})
			return
		}
		writeError(c, h.logger, "open uploads", err)
		return
	}

	l, err := h.uc.Create(c.Request.Context(), id, usecase.CreateListingInput{
		Title:       form.Title,
		Description: form.Description,
		Price:       *form.Price,
		Category:    form.Category,
		Location:    form.Location,
		Condition:   form.Condition,
	}, uploads)
	if err != nil {
		writeError(c, h.logger, "create listing", err)
		return
	}
	c.JSON(http.StatusCreated, toListingResponse(l))
}

var errTooLarge = errors.New("image too large")

// openUploads opens every file; the returned func closes whatever was opened.
// Content types come from the file bytes, never from the part header.
func openUploads(files []*multipart.FileHeader) ([]usecase.ImageUpload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]usecase.ImageUpload, 0, len(files))
	for _, fh := range files {
		if fh.Size > MaxImageBytes {
			return nil, closeAll, errTooLarge
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)

		ct, err := sniffImage(f)
		if err != nil {
			return nil, closeAll, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		uploads = append(uploads, usecase.ImageUpload{
			Body:        f,
			Size:        fh.Size,
			ContentType: ct,
		})
	}
	return uploads, closeAll, nil
}

// sniffImage detects the content type from the first 512 bytes and leaves f
// rewound to the start.
func sniffImage(f io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read image: %w", err)
	}

	ct := http.DetectContentType(head[:n])
	if _, ok := objstore.ImageExtension(ct); !ok {
		return "", fmt.Errorf("%w: detected %s", domain.ErrUnsupportedImage, ct)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind image: %w", err)
	}
	return ct, nil
}

// PUT /api/products/:id
func (h *ListingHandler) Update(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	var req updateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	l, err := h.uc.Update(c.Request.Context(), id, c.Param("id"), domain.ListingUpdate{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Location:    req.Location,
		Condition:   req.Condition,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(c, h.logger, "update listing", err)
		return
	}
	c.JSON(http.StatusOK, toListingResponse(l))
}

// DELETE /api/products/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	if err := h.uc.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
		writeError(c, h.logger, "delete listing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// GET /api/products/my
func (h *ListingHandler) Mine(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	listings, err := h.uc.Mine(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "my listings", err)
		return
	}
	c.JSON(http.StatusOK, toListingResponses(listings))
}

// PUT /api/products/admin/:id/toggle
func (h *ListingHandler) Toggle(c *gin.Context) {
	l, err := h.uc.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "toggle listing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": l.ID, "is_active": l.IsActive})
}

// DELETE /api/products/admin/:id
func (h *ListingHandler) AdminDelete(c *gin.Context) {
	if err := h.uc.AdminDelete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, "admin delete listing", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product permanently deleted"})
}
