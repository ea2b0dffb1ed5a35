package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/session"
	"github.com/ErlanBelekov/marketplace/internal/usecase"
	"github.com/gin-gonic/gin"
)

type userUsecaser interface {
	GetProfile(ctx context.Context, id *domain.Identity) (*domain.User, error)
	UpdateProfile(ctx context.Context, id *domain.Identity, in usecase.ProfileInput) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	DeleteUser(ctx context.Context, id *domain.Identity, targetID string) error
}

type UserHandler struct {
	uc     userUsecaser
	logger *slog.Logger
}

func NewUserHandler(uc userUsecaser, logger *slog.Logger) *UserHandler {
	return &UserHandler{uc: uc, logger: logger.With("component", "user_handler")}
}

type updateProfileRequest struct {
	Name     string `json:"name"     binding:"omitempty,max=100"`
	Phone    string `json:"phone"    binding:"omitempty,max=32"`
	Avatar   string `json:"avatar"   binding:"omitempty,url"`
	Password string `json:"password"`
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	u, err := h.uc.GetProfile(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	u, err := h.uc.UpdateProfile(c.Request.Context(), id, usecase.ProfileInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.uc.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "list users", err)
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = toUserResponse(u)
	}
	c.JSON(http.StatusOK, items)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	targetID := c.Param("id")
	if err := h.uc.DeleteUser(c.Request.Context(), id, targetID); err != nil {
		writeError(c, h.logger, "delete user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User removed"})
}
