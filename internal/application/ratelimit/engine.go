// Package ratelimit implements admission control on top of the shared
// sliding-window store: per-tier evaluation, tier composition and the store
// failure policy.
package ratelimit

import (
	"context"
	"time"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
)

// Engine evaluates one tier for one bucket key.
type Engine struct {
	store domain.WindowStore
}

func NewEngine(store domain.WindowStore) *Engine {
	return &Engine{store: store}
}

// Evaluate records the attempt and turns the window count into a Decision.
// Exceeding the limit is a normal denied Decision; only store failures return
// an error.
func (e *Engine) Evaluate(ctx context.Context, key domain.Key, cfg domain.LimiterConfig, now time.Time) (domain.Decision, error) {
	res, err := e.store.RecordAndCount(ctx, key, now, cfg.Window, cfg.Max)
	if err != nil {
		return domain.Decision{}, err
	}

	d := domain.Decision{
		Allowed:   res.TotalHits <= int64(cfg.Max),
		Reason:    domain.ReasonAllowed,
		Tier:      cfg.Name,
		Limit:     cfg.Max,
		TotalHits: res.TotalHits,
		Remaining: domain.Remaining(cfg.Max, res.TotalHits),
		ResetAt:   now.Add(cfg.Window),
	}
	if !d.Allowed {
		d.Reason = domain.ReasonRateLimited
		d.RetryAfter = retryAfter(res.ReleaseAt, cfg.Window, now)
	}
	return d, nil
}

// retryAfter is the time until the releasing entry leaves the window, clamped
// to (0, window+1ms]. Without a releasing entry the whole window is the bound.
func retryAfter(releaseAt time.Time, window time.Duration, now time.Time) time.Duration {
	if releaseAt.IsZero() {
		return window
	}
	// Entries expire once strictly older than now-window.
	wait := releaseAt.Add(window + time.Millisecond).Sub(now)
	if wait <= 0 {
		return time.Millisecond
	}
	if limit := window + time.Millisecond; wait > limit {
		return limit
	}
	return wait
}
