package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/gatewarden/internal/application/ratelimit"
	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/infrastructure/auth"
	"github.com/orris-inc/gatewarden/internal/infrastructure/config"
	infraRatelimit "github.com/orris-inc/gatewarden/internal/infrastructure/ratelimit"
	"github.com/orris-inc/gatewarden/internal/interfaces/http/handlers"
	"github.com/orris-inc/gatewarden/internal/interfaces/http/middleware"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

// Container holds every component of the gateway and wires them together.
// Limiter configuration is validated here, so a Container that was built is
// safe to serve traffic.
type Container struct {
	engine   *gin.Engine
	cfg      *config.Config
	log      logger.Interface
	redis    redis.UniversalClient
	registry *prometheus.Registry

	// Rate limiting
	store       *infraRatelimit.RedisWindowStore
	tiers       []domain.LimiterConfig
	composer    *ratelimit.Composer
	bucketAdmin *ratelimit.BucketAdmin

	// Middlewares
	authMiddleware      *middleware.AuthMiddleware
	rateLimitMiddleware *middleware.RateLimitMiddleware

	// Handlers
	healthHandler    *handlers.HealthHandler
	rateLimitHandler *handlers.RateLimitHandler
	proxyHandler     *handlers.ProxyHandler
}

// NewContainer builds the gateway on top of an already connected redis client.
func NewContainer(cfg *config.Config, redisClient redis.UniversalClient, log logger.Interface) (*Container, error) {
	c := &Container{
		engine:   gin.New(),
		cfg:      cfg,
		log:      log,
		redis:    redisClient,
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := c.engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	if err := c.initRateLimiting(); err != nil {
		return nil, err
	}

	if err := c.initHandlers(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initRateLimiting() error {
	rl := c.cfg.RateLimit

	tiers, err := ratelimit.BuildLimiterConfigs(rl)
	if err != nil {
		return err
	}
	bypass, err := domain.NewBypassPolicy(rl.ExemptPaths)
	if err != nil {
		return err
	}

	c.tiers = tiers
	c.store = infraRatelimit.NewRedisWindowStore(c.redis, infraRatelimit.WithTimeout(rl.StoreTimeout))
	keys := domain.NewKeyResolver(rl.KeyPrefix)

	c.composer, err = ratelimit.NewComposer(
		ratelimit.NewEngine(c.store),
		tiers,
		bypass,
		keys,
		c.log.Named("ratelimit"),
		ratelimit.WithMetrics(ratelimit.NewMetrics(c.registry)),
	)
	if err != nil {
		return err
	}
	c.bucketAdmin = ratelimit.NewBucketAdmin(c.store, tiers, keys, c.log.Named("ratelimit-admin"))

	if rl.Enabled {
		c.rateLimitMiddleware = middleware.NewRateLimitMiddleware(c.composer, c.cfg.Auth.APIKeyHeader, rl.UnavailableStatus)
	}

	c.log.Infow("rate limiting configured",
		"enabled", rl.Enabled,
		"tiers", len(tiers),
		"exempt_paths", rl.ExemptPaths,
	)
	return nil
}

func (c *Container) initHandlers() error {
	jwtService := auth.NewJWTService(c.cfg.Auth.JWT.Secret, c.cfg.Auth.JWT.AccessExpMinutes)
	c.authMiddleware = middleware.NewAuthMiddleware(jwtService, c.log)

	c.healthHandler = handlers.NewHealthHandler(c.store, c.log)
	c.rateLimitHandler = handlers.NewRateLimitHandler(c.bucketAdmin, c.log)

	proxy, err := handlers.NewProxyHandler(c.cfg.Server.UpstreamURL, c.log.Named("proxy"))
	if err != nil {
		return err
	}
	c.proxyHandler = proxy
	return nil
}

// Tiers returns the validated tier set.
func (c *Container) Tiers() []domain.LimiterConfig {
	return c.tiers
}

// Shutdown releases the redis connection pool.
func (c *Container) Shutdown() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
