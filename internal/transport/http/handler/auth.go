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

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.Session, error)
	Login(ctx context.Context, email, password string) (*usecase.Session, error)
	Logout(ctx context.Context, id *domain.Identity, raw string) error
	AddRole(ctx context.Context, id *domain.Identity, role string) (domain.RoleSet, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type registerRequest struct {
	Name     string   `json:"name"     binding:"required,max=100"`
	Email    string   `json:"email"    binding:"required,email"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles"`
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type addRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.authUsecase.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(s))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.authUsecase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(s))
}

// POST /api/auth/logout
// Invalidates the exact token the request was authenticated with.
func (h *AuthHandler) Logout(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	if err := h.authUsecase.Logout(c.Request.Context(), id, id.Token.Raw); err != nil {
		writeError(c, h.logger, "logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}
	c.JSON(http.StatusOK, identityResponse(id))
}

// PUT /api/users/add-role
func (h *AuthHandler) AddRole(c *gin.Context) {
	var req addRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id := session.FromContext(c.Request.Context())
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	roles, err := h.authUsecase.AddRole(c.Request.Context(), id, req.Role)
	if err != nil {
		writeError(c, h.logger, "add role", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"roles": roles})
}
