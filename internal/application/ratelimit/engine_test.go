package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/orris-inc/gatewarden/internal/domain/ratelimit"
)

func TestEngine_Evaluate_FillsWindowThenDenies(t *testing.T) {
	engine := NewEngine(newMemStore())
	tier := mustTier(t, domain.LimiterConfig{Name: "global", Max: 100, Window: 60 * time.Second})
	key := domain.Key("rl:global:user:42")
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		d, err := engine.Evaluate(ctx, key, tier, t0)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 100-i, d.Remaining)
		assert.Equal(t, domain.ReasonAllowed, d.Reason)
	}

	d, err := engine.Evaluate(ctx, key, tier, t0)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonRateLimited, d.Reason)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, int64(101), d.TotalHits)
	assert.Equal(t, 60*time.Second+time.Millisecond, d.RetryAfter)
	assert.Equal(t, "global", d.Tier)
	assert.Equal(t, 100, d.Limit)

	d, err = engine.Evaluate(ctx, key, tier, t0.Add(60001*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 99, d.Remaining)
	assert.Zero(t, d.RetryAfter)
}

func TestEngine_Evaluate_RollingWindow(t *testing.T) {
	engine := NewEngine(newMemStore())
	tier := mustTier(t, domain.LimiterConfig{Name: "email", Max: 3, Window: 10 * time.Second})
	key := domain.Key("rl:email:addr:10.0.0.9")
	ctx := context.Background()

	offsets := []time.Duration{0, 1500 * time.Millisecond, 7 * time.Second, 9900 * time.Millisecond, 11 * time.Second, 11200 * time.Millisecond, 17100 * time.Millisecond}
	var admitted []time.Time
	for _, off := range offsets {
		now := t0.Add(off)
		d, err := engine.Evaluate(ctx, key, tier, now)
		require.NoError(t, err)
		if d.Allowed {
			admitted = append(admitted, now)
		}
	}

	// No window of 10s may hold more than 3 admitted requests.
	for _, start := range admitted {
		n := 0
		for _, a := range admitted {
			if !a.Before(start) && a.Before(start.Add(tier.Window)) {
				n++
			}
		}
		assert.LessOrEqual(t, n, tier.Max)
	}
	assert.NotEmpty(t, admitted)
}

func TestEngine_Evaluate_DeniedAttemptsCount(t *testing.T) {
	engine := NewEngine(newMemStore())
	tier := mustTier(t, domain.LimiterConfig{Name: "login", Kind: domain.TierKindAuth, Max: 2, Window: 10 * time.Second})
	key := domain.Key("rl:login:addr:1.2.3.4")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := engine.Evaluate(ctx, key, tier, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	// Entries at 0s..4s; at 10.5s the 0s entry has left, four remain plus this one.
	d, err := engine.Evaluate(ctx, key, tier, t0.Add(10500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(5), d.TotalHits)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, tier.Window+time.Millisecond)
}

func TestEngine_Evaluate_RetryingOnTimeIsAdmitted(t *testing.T) {
	engine := NewEngine(newMemStore())
	tier := mustTier(t, domain.LimiterConfig{Name: "global", Max: 3, Window: 60 * time.Second})
	key := domain.Key("rl:global:user:7")
	ctx := context.Background()

	var d domain.Decision
	for i := 0; i < 4; i++ {
		var err error
		d, err = engine.Evaluate(ctx, key, tier, t0)
		require.NoError(t, err)
	}
	require.False(t, d.Allowed)

	d, err := engine.Evaluate(ctx, key, tier, t0.Add(d.RetryAfter))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.TotalHits)
}

func TestEngine_Evaluate_ZeroMaxDeniesEverything(t *testing.T) {
	engine := NewEngine(newMemStore())
	tier := mustTier(t, domain.LimiterConfig{Name: "closed", Max: 0, Window: 5 * time.Second})

	d, err := engine.Evaluate(context.Background(), "rl:closed:user:1", tier, t0)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 5*time.Second, d.RetryAfter)
}

func TestEngine_Evaluate_StoreError(t *testing.T) {
	engine := NewEngine(failingStore{})
	tier := mustTier(t, domain.LimiterConfig{Name: "global", Max: 1})

	_, err := engine.Evaluate(context.Background(), "rl:global:user:1", tier, t0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errBoom)
}

func TestRetryAfter(t *testing.T) {
	window := 60 * time.Second

	tests := []struct {
		name      string
		releaseAt time.Time
		now       time.Time
		want      time.Duration
	}{
		{name: "no release entry", releaseAt: time.Time{}, now: t0, want: window},
		{name: "entry recorded now", releaseAt: t0, now: t0, want: window + time.Millisecond},
		{name: "entry half way", releaseAt: t0, now: t0.Add(30 * time.Second), want: 30*time.Second + time.Millisecond},
		{name: "entry about to leave", releaseAt: t0, now: t0.Add(window), want: time.Millisecond},
		{name: "entry already gone", releaseAt: t0, now: t0.Add(2 * window), want: time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryAfter(tt.releaseAt, window, tt.now))
		})
	}
}
