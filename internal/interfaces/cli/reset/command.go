package reset

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orris-inc/gatewarden/internal/application/ratelimit"
	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/infrastructure/config"
	infraRatelimit "github.com/orris-inc/gatewarden/internal/infrastructure/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

var (
	configPath string
	query      ratelimit.BucketQuery
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear one rate limit bucket",
		Long: `Clear every entry of the bucket identified by a tier and exactly one identity.
The next request for that identity starts from an empty window.`,
		Example:      `  gatewarden reset --tier login --addr 203.0.113.7`,
		RunE:         run,
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().StringVar(&query.Tier, "tier", "", "Tier name")
	cmd.Flags().StringVar(&query.UserID, "user", "", "Authenticated user id")
	cmd.Flags().StringVar(&query.APIKey, "api-key", "", "API key (hashed before lookup)")
	cmd.Flags().StringVar(&query.Address, "addr", "", "Client address")
	_ = cmd.MarkFlagRequired("tier")
	cmd.MarkFlagsMutuallyExclusive("user", "api-key", "addr")
	cmd.MarkFlagsOneRequired("user", "api-key", "addr")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, "")
	if err != nil {
		return err
	}

	tiers, err := ratelimit.BuildLimiterConfigs(cfg.RateLimit)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	log := logger.NewLogger()
	client := infraRatelimit.NewRedisClient(&cfg.Redis)
	defer client.Close()
	if err := infraRatelimit.Connect(ctx, client, cfg.Redis.ConnectRetries, log); err != nil {
		return err
	}

	store := infraRatelimit.NewRedisWindowStore(client, infraRatelimit.WithTimeout(cfg.RateLimit.StoreTimeout))
	admin := ratelimit.NewBucketAdmin(store, tiers, domain.NewKeyResolver(cfg.RateLimit.KeyPrefix), log)

	key, err := admin.Reset(ctx, query)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key)
	return nil
}
