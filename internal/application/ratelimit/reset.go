package ratelimit

import (
	"context"
	"time"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/errors"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

// BucketQuery names one bucket: a tier plus exactly one identity.
type BucketQuery struct {
	Tier    string `json:"tier" form:"tier" binding:"required"`
	UserID  string `json:"user_id,omitempty" form:"user_id"`
	APIKey  string `json:"api_key,omitempty" form:"api_key"`
	Address string `json:"address,omitempty" form:"address"`
}

func (q BucketQuery) identity() (domain.IdentityKind, string, error) {
	var (
		kind     domain.IdentityKind
		identity string
		set      int
	)
	if q.UserID != "" {
		kind, identity = domain.IdentityUser, q.UserID
		set++
	}
	if q.APIKey != "" {
		kind, identity = domain.IdentityAPIKey, q.APIKey
		set++
	}
	if q.Address != "" {
		kind, identity = domain.IdentityAddress, q.Address
		set++
	}
	if set != 1 {
		return "", "", errors.NewValidationError("exactly one of user_id, api_key or address is required")
	}
	return kind, identity, nil
}

// BucketStatus is a read-only view of one bucket.
type BucketStatus struct {
	Key       string `json:"key"`
	Tier      string `json:"tier"`
	Hits      int64  `json:"hits"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	WindowMs  int64  `json:"window_ms"`
}

// BucketAdmin resets and inspects individual buckets for operators.
type BucketAdmin struct {
	store  domain.WindowStore
	tiers  map[string]domain.LimiterConfig
	keys   domain.KeyResolver
	logger logger.Interface
	now    func() time.Time
}

func NewBucketAdmin(store domain.WindowStore, tiers []domain.LimiterConfig, keys domain.KeyResolver, log logger.Interface) *BucketAdmin {
	byName := make(map[string]domain.LimiterConfig, len(tiers))
	for _, t := range tiers {
		byName[t.Name] = t
	}
	return &BucketAdmin{
		store:  store,
		tiers:  byName,
		keys:   keys,
		logger: log,
		now:    time.Now,
	}
}

func (a *BucketAdmin) resolve(q BucketQuery) (domain.LimiterConfig, domain.Key, error) {
	tier, ok := a.tiers[q.Tier]
	if !ok {
		return domain.LimiterConfig{}, "", errors.NewNotFoundError("rate limit tier not found", q.Tier)
	}
	kind, identity, err := q.identity()
	if err != nil {
		return domain.LimiterConfig{}, "", err
	}

	switch tier.Strategy {
	case domain.KeyStrategyAPIKey:
		if kind != domain.IdentityAPIKey {
			return domain.LimiterConfig{}, "", errors.NewValidationError("tier is keyed on api_key", tier.Name)
		}
	case domain.KeyStrategyAddress:
		if kind != domain.IdentityAddress {
			return domain.LimiterConfig{}, "", errors.NewValidationError("tier is keyed on address", tier.Name)
		}
	default:
		if kind == domain.IdentityAPIKey {
			return domain.LimiterConfig{}, "", errors.NewValidationError("tier is keyed on user_id or address", tier.Name)
		}
	}

	return tier, a.keys.Build(tier.Name, kind, identity), nil
}

// Reset clears one bucket and returns its key.
func (a *BucketAdmin) Reset(ctx context.Context, q BucketQuery) (domain.Key, error) {
	tier, key, err := a.resolve(q)
	if err != nil {
		return "", err
	}

	if err := a.store.Reset(ctx, key); err != nil {
		a.logger.Errorw("failed to reset rate limit bucket", "tier", tier.Name, "key", key, "error", err)
		return "", errors.NewServiceUnavailableError("rate limit store unavailable")
	}

	a.logger.Infow("rate limit bucket reset", "tier", tier.Name, "key", key)
	return key, nil
}

// Inspect counts a bucket without recording an attempt.
func (a *BucketAdmin) Inspect(ctx context.Context, q BucketQuery) (*BucketStatus, error) {
	tier, key, err := a.resolve(q)
	if err != nil {
		return nil, err
	}

	hits, err := a.store.Count(ctx, key, a.now(), tier.Window)
	if err != nil {
		a.logger.Errorw("failed to inspect rate limit bucket", "tier", tier.Name, "key", key, "error", err)
		return nil, errors.NewServiceUnavailableError("rate limit store unavailable")
	}

	return &BucketStatus{
		Key:       key.String(),
		Tier:      tier.Name,
		Hits:      hits,
		Limit:     tier.Max,
		Remaining: domain.Remaining(tier.Max, hits),
		WindowMs:  tier.Window.Milliseconds(),
	}, nil
}
