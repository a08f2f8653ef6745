package ratelimit

import (
	"time"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/config"
)

// BuildLimiterConfigs turns the on-disk tier list into validated LimiterConfigs.
// An apikey tier without an explicit max inherits the max of the tier it
// elevates, multiplied by APIKeyMultiplier.
func BuildLimiterConfigs(cfg config.RateLimitConfig) ([]domain.LimiterConfig, error) {
	maxByName := make(map[string]int, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		if t.Max != nil {
			maxByName[t.Name] = *t.Max
		}
	}

	multiplier := cfg.APIKeyMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	out := make([]domain.LimiterConfig, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		limit, ok := maxByName[t.Name]
		if !ok {
			base, derivable := maxByName[t.Elevates]
			if t.Elevates == "" || !derivable {
				return nil, &domain.InvalidConfigError{Tier: t.Name, Field: "max", Reason: "is required"}
			}
			limit = base * multiplier
		}

		lc, err := domain.NewLimiterConfig(domain.LimiterConfig{
			Name:         t.Name,
			Kind:         domain.TierKind(t.Kind),
			Window:       time.Duration(t.WindowMs) * time.Millisecond,
			Max:          limit,
			Strategy:     domain.KeyStrategy(t.KeyStrategy),
			Elevates:     t.Elevates,
			OnStoreError: domain.FailurePolicy(t.OnStoreError),
			Paths:        t.Match.Paths,
			Methods:      t.Match.Methods,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, lc)
	}

	if err := domain.ValidateTierSet(out); err != nil {
		return nil, err
	}
	return out, nil
}
