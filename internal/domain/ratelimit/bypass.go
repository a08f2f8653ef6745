package ratelimit

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// BypassPolicy holds the single ordered list of exempt path patterns shared by
// all tiers, and filters tiers that do not apply to a request.
type BypassPolicy struct {
	exempt []string
}

// NewBypassPolicy validates the exempt patterns (doublestar globs).
func NewBypassPolicy(exemptPaths []string) (*BypassPolicy, error) {
	patterns := make([]string, 0, len(exemptPaths))
	for _, p := range exemptPaths {
		if !doublestar.ValidatePattern(p) {
			return nil, &InvalidConfigError{Field: "exempt_paths", Reason: fmt.Sprintf("invalid pattern %q", p)}
		}
		patterns = append(patterns, p)
	}
	return &BypassPolicy{exempt: patterns}, nil
}

// IsExempt reports whether path skips admission control entirely.
func (p *BypassPolicy) IsExempt(path string) bool {
	for _, pattern := range p.exempt {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// Applicable returns the tiers that evaluate req, preserving order. Tiers that
// do not match the request, or that need an API key the request lacks, are
// left out rather than denied. When an API key tier applies, the tier it
// elevates is replaced by it.
func (p *BypassPolicy) Applicable(req RequestContext, tiers []LimiterConfig) []LimiterConfig {
	elevated := make(map[string]bool)
	for _, t := range tiers {
		if t.Elevates != "" && req.HasAPIKey() && t.Matches(req.Method, req.Path) {
			elevated[t.Elevates] = true
		}
	}

	out := make([]LimiterConfig, 0, len(tiers))
	for _, t := range tiers {
		if t.RequiresAPIKey() && !req.HasAPIKey() {
			continue
		}
		if elevated[t.Name] {
			continue
		}
		if !t.Matches(req.Method, req.Path) {
			continue
		}
		out = append(out, t)
	}
	return out
}
