package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	"github.com/ErlanBelekov/marketplace/internal/transport/http/handler"
	"github.com/ErlanBelekov/marketplace/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

const (
	livenessPath  = "/healthz"
	readinessPath = "/readyz"
)

// Handlers groups everything NewRouter mounts. Images is optional and only
// set when listing images are kept in process.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Listings  *handler.ListingHandler
	Images    *handler.ImageHandler
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
}

func NewRouter(logger *slog.Logger, guard middleware.Authenticator, h Handlers) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithRequestID: false,
		Filters:       []sloggin.Filter{sloggin.IgnorePath(livenessPath, readinessPath)},
	}))
	r.Use(middleware.Metrics(livenessPath, readinessPath))

	r.GET(livenessPath, gin.WrapF(h.Liveness))
	r.GET(readinessPath, gin.WrapF(h.Readiness))
	if h.Images != nil {
		r.GET("/images/*key", h.Images.Get)
	}

	authMW := middleware.Authenticate(guard, logger)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", authMW, h.Auth.Logout)
	auth.GET("/me", authMW, h.Auth.Me)

	users := api.Group("/users", authMW)
	users.GET("/profile", h.Users.GetProfile)
	users.PUT("/profile", h.Users.UpdateProfile)
	users.PUT("/add-role", h.Auth.AddRole)
	users.GET("", adminOnly, h.Users.List)
	users.DELETE("/:id", adminOnly, h.Users.Delete)

	products := api.Group("/products")
	products.GET("", h.Listings.List)
	products.GET("/my", authMW, h.Listings.Mine)
	products.GET("/:id", h.Listings.Get)
	products.POST("", authMW, middleware.RequireRole(domain.RoleSeller, domain.RoleAdmin), h.Listings.Create)
	products.PUT("/:id", authMW, h.Listings.Update)
	products.DELETE("/:id", authMW, h.Listings.Delete)

	admin := products.Group("/admin", authMW, adminOnly)
	admin.GET("/all", h.Listings.AdminList)
	admin.PUT("/:id/toggle", h.Listings.Toggle)
	admin.DELETE("/:id", h.Listings.AdminDelete)

	return r
}
