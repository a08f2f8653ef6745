package ratelimit

import "time"

// Reason explains a Decision.
type Reason string

const (
	ReasonAllowed          Reason = "allowed"
	ReasonExempt           Reason = "exempt"
	ReasonRateLimited      Reason = "rate_limited"
	ReasonStoreUnavailable Reason = "rate_limiter_unavailable"
)

// Decision is the outcome of admission control for one request, either for a
// single tier or composed across tiers.
type Decision struct {
	Allowed bool
	Reason  Reason

	// Tier is empty when no tier was evaluated (exempt path, no applicable tier,
	// or every tier failed open).
	Tier      string
	Limit     int
	TotalHits int64
	Remaining int
	ResetAt   time.Time

	// RetryAfter is set only on denials.
	RetryAfter time.Duration
}

// ExemptDecision is the static allow returned for exempt paths.
func ExemptDecision() Decision {
	return Decision{Allowed: true, Reason: ReasonExempt}
}

// Evaluated reports whether any tier contributed to the decision. Rate limit
// headers are only emitted for evaluated decisions.
func (d Decision) Evaluated() bool {
	return d.Tier != ""
}

// Remaining returns max(0, limit-totalHits).
func Remaining(limit int, totalHits int64) int {
	r := int64(limit) - totalHits
	if r < 0 {
		return 0
	}
	return int(r)
}

// MostRestrictive composes per-tier decisions. If any tier denies, the result
// is the denial with the largest RetryAfter; otherwise it is the allow with
// the least headroom. Remaining is the minimum across all tiers either way.
// Ties keep the earlier tier.
func MostRestrictive(decisions []Decision) Decision {
	if len(decisions) == 0 {
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}

	chosen := -1
	minRemaining := decisions[0].Remaining
	for i, d := range decisions {
		if d.Remaining < minRemaining {
			minRemaining = d.Remaining
		}
		if d.Allowed {
			continue
		}
		if chosen < 0 || d.RetryAfter > decisions[chosen].RetryAfter {
			chosen = i
		}
	}

	if chosen < 0 {
		chosen = 0
		for i, d := range decisions {
			if d.Remaining < decisions[chosen].Remaining {
				chosen = i
			}
		}
	}

	out := decisions[chosen]
	out.Remaining = minRemaining
	return out
}
