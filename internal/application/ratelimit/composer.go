package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
	"github.com/orris-inc/gatewarden/internal/shared/goroutine"
	"github.com/orris-inc/gatewarden/internal/shared/logger"
)

// unavailableRetryAfter is advertised on fail-closed denials.
const unavailableRetryAfter = time.Second

// Composer evaluates every applicable tier for a request and returns the most
// restrictive Decision. It is built once at startup and shared by all requests.
type Composer struct {
	engine  *Engine
	tiers   []domain.LimiterConfig
	bypass  *domain.BypassPolicy
	keys    domain.KeyResolver
	metrics *Metrics
	logger  logger.Interface
	now     func() time.Time

	storeErrLog    rate.Sometimes
	storeErrSilent atomic.Int64
}

type ComposerOption func(*Composer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// WithMetrics enables per-tier outcome metrics.
func WithMetrics(m *Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// WithStoreErrorLogInterval limits how often store failures are logged.
func WithStoreErrorLogInterval(d time.Duration) ComposerOption {
	return func(c *Composer) { c.storeErrLog = rate.Sometimes{First: 1, Interval: d} }
}

func NewComposer(
	engine *Engine,
	tiers []domain.LimiterConfig,
	bypass *domain.BypassPolicy,
	keys domain.KeyResolver,
	log logger.Interface,
	opts ...ComposerOption,
) (*Composer, error) {
	for _, t := range tiers {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if err := domain.ValidateTierSet(tiers); err != nil {
		return nil, err
	}

	c := &Composer{
		engine:      engine,
		tiers:       tiers,
		bypass:      bypass,
		keys:        keys,
		metrics:     NewMetrics(nil),
		logger:      log,
		now:         time.Now,
		storeErrLog: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Tiers returns the configured tiers in evaluation order.
func (c *Composer) Tiers() []domain.LimiterConfig {
	return c.tiers
}

// Evaluate is the admission decision for one request.
func (c *Composer) Evaluate(ctx context.Context, req domain.RequestContext) domain.Decision {
	if c.bypass.IsExempt(req.Path) {
		return domain.ExemptDecision()
	}
	return c.ComposeAndEvaluate(ctx, req, c.bypass.Applicable(req, c.tiers))
}

type tierResult struct {
	evaluated bool
	key       domain.Key
	decision  domain.Decision
	err       error
	took      time.Duration
}

// ComposeAndEvaluate runs every applicable tier, in parallel, without short
// circuiting: each tier's counter must see every request it applies to.
func (c *Composer) ComposeAndEvaluate(ctx context.Context, req domain.RequestContext, applicable []domain.LimiterConfig) domain.Decision {
	now := c.now()
	results := make([]tierResult, len(applicable))

	var g errgroup.Group
	for i, tier := range applicable {
		key, ok := c.keys.Resolve(req, tier)
		if !ok {
			continue
		}
		g.Go(func() error {
			defer goroutine.Recover(c.logger, "ratelimit-tier-"+tier.Name)
			start := time.Now()
			d, err := c.engine.Evaluate(ctx, key, tier, now)
			results[i] = tierResult{evaluated: true, key: key, decision: d, err: err, took: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	decisions := make([]domain.Decision, 0, len(results))
	for i, r := range results {
		tier := applicable[i]
		switch {
		case !r.evaluated:
			continue
		case r.err != nil:
			c.metrics.observe(tier.Name, outcomeStoreError, r.took)
			c.logStoreError(tier, r.key, req, r.err)
			if tier.FailsClosed() {
				decisions = append(decisions, unavailableDecision(tier, now))
			}
		case !r.decision.Allowed:
			c.metrics.observe(tier.Name, outcomeDenied, r.took)
			c.logger.Warnw("rate limit exceeded",
				"tier", tier.Name,
				"key", r.key,
				"path", req.Path,
				"total_hits", r.decision.TotalHits,
				"limit", tier.Max,
				"retry_after", r.decision.RetryAfter,
			)
			decisions = append(decisions, r.decision)
		default:
			c.metrics.observe(tier.Name, outcomeAllowed, r.took)
			decisions = append(decisions, r.decision)
		}
	}

	return domain.MostRestrictive(decisions)
}

func (c *Composer) logStoreError(tier domain.LimiterConfig, key domain.Key, req domain.RequestContext, err error) {
	c.storeErrSilent.Add(1)
	c.storeErrLog.Do(func() {
		c.logger.Errorw("rate limit store unavailable",
			"tier", tier.Name,
			"key", key,
			"path", req.Path,
			"policy", tier.OnStoreError,
			"occurrences", c.storeErrSilent.Swap(0),
			"error", err,
		)
	})
}

func unavailableDecision(tier domain.LimiterConfig, now time.Time) domain.Decision {
	return domain.Decision{
		Allowed:    false,
		Reason:     domain.ReasonStoreUnavailable,
		Tier:       tier.Name,
		Limit:      tier.Max,
		Remaining:  0,
		ResetAt:    now.Add(unavailableRetryAfter),
		RetryAfter: unavailableRetryAfter,
	}
}
