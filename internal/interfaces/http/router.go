package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orris-inc/gatewarden/internal/interfaces/http/middleware"
	"github.com/orris-inc/gatewarden/internal/shared/authorization"
)

// Router represents the HTTP router configuration
type Router struct {
	*Container
}

func NewRouter(c *Container) *Router {
	return &Router{Container: c}
}

// SetupRoutes configures all HTTP routes. Rate limiting runs after OptionalAuth
// so authenticated callers are keyed on their principal.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Recovery(r.log))
	r.engine.Use(middleware.Logger(r.log))
	if len(r.cfg.Server.AllowedOrigins) > 0 {
		r.engine.Use(middleware.CORS(r.cfg.Server.AllowedOrigins, r.cfg.Auth.APIKeyHeader))
	}
	r.engine.Use(r.authMiddleware.OptionalAuth())
	if r.rateLimitMiddleware != nil {
		r.engine.Use(r.rateLimitMiddleware.Limit())
	}

	r.engine.GET("/health", r.healthHandler.Live)
	r.engine.GET("/health/ready", r.healthHandler.Ready)
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))

	r.setupAdminRoutes()

	r.engine.NoRoute(r.proxyHandler.Handle)
}

func (r *Router) setupAdminRoutes() {
	admin := r.engine.Group("/admin")
	admin.Use(r.authMiddleware.RequireAuth(), authorization.RequireAdmin())
	{
		buckets := admin.Group("/ratelimit/buckets")
		buckets.GET("", r.rateLimitHandler.InspectBucket)
		buckets.DELETE("", r.rateLimitHandler.ResetBucket)
	}
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
