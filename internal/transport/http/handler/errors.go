package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer     = "Internal server error"
	errServiceUnavailable = "Service temporarily unavailable"
	errUnauthorized       = "Not authorized, no token"
	errInvalidCredentials = "Invalid credentials"
	errDuplicateEmail     = "Email already in use"
	errUserNotFound       = "User not found"
	errSelfDelete         = "You cannot delete your own account"
	errRoleConflict       = "You already have this role"
	errRoleNotSelfService = "This role cannot be added"
	errInvalidRole        = "Invalid role"
	errForbidden          = "Access denied"
	errNotAuthorized      = "Not authorized"
	errListingNotFound    = "Product not found"
	errTooManyImages      = "Maximum 5 images allowed"
	errUnsupportedImage   = "Only jpeg, png and webp images are allowed"
	errInvalidCategory    = "Invalid category"
	errInvalidCondition   = "Invalid condition"
	errInvalidPrice       = "Price must be a non-negative number"
	errInvalidForm        = "Invalid multipart form"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, errServiceUnavailable},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, errInvalidCredentials},
	{domain.ErrDuplicateEmail, http.StatusConflict, errDuplicateEmail},
	{domain.ErrUserNotFound, http.StatusNotFound, errUserNotFound},
	{domain.ErrSelfDelete, http.StatusBadRequest, errSelfDelete},
	{domain.ErrRoleConflict, http.StatusConflict, errRoleConflict},
	{domain.ErrRoleNotSelfService, http.StatusBadRequest, errRoleNotSelfService},
	{domain.ErrInvalidRole, http.StatusBadRequest, errInvalidRole},
	{domain.ErrWeakPassword, http.StatusBadRequest, domain.ErrWeakPassword.Error()},
	{domain.ErrRoleDenied, http.StatusForbidden, errForbidden},
	{domain.ErrNotAuthorized, http.StatusForbidden, errNotAuthorized},
	{domain.ErrListingNotFound, http.StatusNotFound, errListingNotFound},
	{domain.ErrPhoneRequired, http.StatusBadRequest, domain.ErrPhoneRequired.Error()},
	{domain.ErrTooManyImages, http.StatusBadRequest, errTooManyImages},
	{domain.ErrUnsupportedImage, http.StatusBadRequest, errUnsupportedImage},
	{domain.ErrInvalidCategory, http.StatusBadRequest, errInvalidCategory},
	{domain.ErrInvalidCondition, http.StatusBadRequest, errInvalidCondition},
	{domain.ErrInvalidPrice, http.StatusBadRequest, errInvalidPrice},
}

// writeError maps err to a status and a fixed message. Unmapped errors are
// logged and reported as 500; store outages are logged too.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logger.ErrorContext(c.Request.Context(), op, "error", err)
			}
			c.JSON(m.status, gin.H{"error": m.message})
			return
		}
	}
	logger.ErrorContext(c.Request.Context(), op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
