package checkconfig

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/orris-inc/gatewarden/internal/application/ratelimit"
	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/infrastructure/config"
)

var (
	configPath string
	printTable bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "check-config",
		Short:        "Validate the configuration",
		Long:         `Load and validate the configuration, including every rate limit tier, without connecting to redis.`,
		RunE:         run,
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&printTable, "print", false, "Print the effective tier table as YAML")

	return cmd
}

type tierView struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	WindowMs     int64    `yaml:"window_ms"`
	Max          int      `yaml:"max"`
	KeyStrategy  string   `yaml:"key_strategy"`
	Elevates     string   `yaml:"elevates,omitempty"`
	OnStoreError string   `yaml:"on_store_error"`
	Paths        []string `yaml:"paths,omitempty"`
	Methods      []string `yaml:"methods,omitempty"`
}

type effectiveConfig struct {
	Enabled           bool       `yaml:"enabled"`
	KeyPrefix         string     `yaml:"key_prefix"`
	StoreTimeout      string     `yaml:"store_timeout"`
	UnavailableStatus int        `yaml:"unavailable_status"`
	ExemptPaths       []string   `yaml:"exempt_paths"`
	Tiers             []tierView `yaml:"tiers"`
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
	if _, err := domain.NewBypassPolicy(cfg.RateLimit.ExemptPaths); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if printTable {
		return render(out, cfg, tiers)
	}

	fmt.Fprintf(out, "configuration OK: %d rate limit tiers\n", len(tiers))
	return nil
}

func render(w io.Writer, cfg *config.Config, tiers []domain.LimiterConfig) error {
	view := effectiveConfig{
		Enabled:           cfg.RateLimit.Enabled,
		KeyPrefix:         cfg.RateLimit.KeyPrefix,
		StoreTimeout:      cfg.RateLimit.StoreTimeout.String(),
		UnavailableStatus: cfg.RateLimit.UnavailableStatus,
		ExemptPaths:       cfg.RateLimit.ExemptPaths,
		Tiers:             make([]tierView, 0, len(tiers)),
	}
	for _, t := range tiers {
		view.Tiers = append(view.Tiers, tierView{
			Name:         t.Name,
			Kind:         string(t.Kind),
			WindowMs:     t.Window.Milliseconds(),
			Max:          t.Max,
			KeyStrategy:  string(t.Strategy),
			Elevates:     t.Elevates,
			OnStoreError: string(t.OnStoreError),
			Paths:        t.Paths,
			Methods:      t.Methods,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]effectiveConfig{"ratelimit": view}); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return enc.Close()
}
