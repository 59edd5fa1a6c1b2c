// Package http wires the gin router, handlers, and middleware chain.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/AminElhag/Liyaqa-sub035/internal/config"
	"github.com/AminElhag/Liyaqa-sub035/internal/domain"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/handler"
	"github.com/AminElhag/Liyaqa-sub035/internal/http/middleware"
	"github.com/AminElhag/Liyaqa-sub035/internal/ratelimit"
)

// NewRouter wires gin routes and the middleware chain. Authentication runs
// before the windowed rate limit so authenticated traffic is budgeted per
// user rather than per IP. The cost of that order is one token validation
// and permission lookup even for requests the limiter then denies; the
// in-process throttle in front absorbs the pathological floods before they
// reach either.
func NewRouter(
	cfg config.Config,
	logger *zap.Logger,
	authHandler *handler.AuthHandler,
	permHandler *handler.PermissionHandler,
	authMiddleware *middleware.Auth,
	limiter *ratelimit.Limiter,
	throttle *middleware.Throttle,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(throttle.Handler())
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(authMiddleware.Authenticate)
	r.Use(middleware.RateLimit(limiter, logger))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/register", authHandler.Register)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/logout-all", middleware.RequireAuth(), authHandler.LogoutAll)
		auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
	}

	permissions := r.Group("/api/permissions", middleware.RequireAuth())
	{
		permissions.GET("", permHandler.List)
		permissions.GET("/modules", permHandler.ListByModule)
	}

	adminRoles := []domain.Role{
		domain.RoleSuperAdmin,
		domain.RoleClubAdmin,
		domain.RolePlatformAdmin,
		domain.RolePlatformSuperAdmin,
	}

	users := r.Group("/api/users", middleware.RequireAuth())
	{
		users.GET("/:id/permissions", middleware.RequirePermission("permissions_view"), permHandler.UserPermissions)
		users.POST("/:id/permissions", middleware.RequireRole(adminRoles...), permHandler.Grant)
		users.DELETE("/:id/permissions", middleware.RequireRole(adminRoles...), permHandler.Revoke)
	}

	return r
}
