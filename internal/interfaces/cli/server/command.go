package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	appRatelimit "github.com/orris-inc/gatewarden/internal/application/ratelimit"
	"github.com/orris-inc/gatewarden/internal/infrastructure/config"
	infraRatelimit "github.com/orris-inc/gatewarden/internal/infrastructure/ratelimit"
	httpRouter "github.com/orris-inc/gatewarden/internal/interfaces/http"
	"github.com/orris-inc/gatewarden/internal/shared/goroutine"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

var (
	env        string
	configPath string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the gateway",
		Long:  `Start the gatewarden HTTP gateway: rate limit every request against the shared redis store and forward admitted traffic upstream.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "production", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("GATEWARDEN_ENV"); envVar != "" {
		env = envVar
	}

	ginMode := mapEnvToGinMode(env)

	cfg, err := config.Load(configPath, ginMode)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Tier set checks need no store; fail before dialing redis.
	if _, err := appRatelimit.BuildLimiterConfigs(cfg.RateLimit); err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	if err := logger.Init(&cfg.Logger, ginMode == gin.DebugMode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	log := logger.NewLogger()
	log.Infow("starting gateway",
		"environment", env,
		"upstream", cfg.Server.UpstreamURL,
		"ratelimit_enabled", cfg.RateLimit.Enabled)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := infraRatelimit.NewRedisClient(&cfg.Redis)
	if err := infraRatelimit.Connect(ctx, redisClient, cfg.Redis.ConnectRetries, log); err != nil {
		_ = redisClient.Close()
		return err
	}

	container, err := httpRouter.NewContainer(cfg, redisClient, log)
	if err != nil {
		_ = redisClient.Close()
		return fmt.Errorf("refusing to start: %w", err)
	}
	defer func() {
		if err := container.Shutdown(); err != nil {
			log.Errorw("failed to close redis client", "error", err)
		}
	}()

	router := httpRouter.NewRouter(container)
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	goroutine.SafeGo(log, "http-server", func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infow("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return gin.ReleaseMode
	case "development", "dev", "debug":
		return gin.DebugMode
	case "test", "testing":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
