package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// TierKind classifies a tier. It drives the default store failure policy and
// whether an API key is required.
type TierKind string

const (
	TierKindGlobal   TierKind = "global"
	TierKindChannel  TierKind = "channel"
	TierKindEndpoint TierKind = "endpoint"
	TierKindAuth     TierKind = "auth"
	TierKindAPIKey   TierKind = "apikey"
)

// KeyStrategy selects how a tier derives the identity part of its bucket key.
type KeyStrategy string

const (
	// KeyStrategyIdentity prefers the authenticated principal and falls back
	// to the source address.
	KeyStrategyIdentity KeyStrategy = "identity"
	// KeyStrategyAddress always keys on the source address.
	KeyStrategyAddress KeyStrategy = "address"
	// KeyStrategyAPIKey keys on the API key; the tier only applies when one is present.
	KeyStrategyAPIKey KeyStrategy = "apikey"
)

// FailurePolicy decides what a tier does when the store is unavailable.
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "open"
	FailClosed FailurePolicy = "closed"
)

// LimiterConfig is the immutable configuration of one tier, loaded once at startup.
type LimiterConfig struct {
	Name         string
	Kind         TierKind
	Window       time.Duration
	Max          int
	Strategy     KeyStrategy
	Elevates     string
	OnStoreError FailurePolicy
	Paths        []string
	Methods      []string
}

// NewLimiterConfig fills defaults that follow from the kind and validates the result.
func NewLimiterConfig(cfg LimiterConfig) (LimiterConfig, error) {
	if cfg.Kind == "" {
		cfg.Kind = TierKindGlobal
	}
	if cfg.Strategy == "" {
		cfg.Strategy = KeyStrategyIdentity
		if cfg.Kind == TierKindAPIKey {
			cfg.Strategy = KeyStrategyAPIKey
		}
	}
	if cfg.OnStoreError == "" {
		cfg.OnStoreError = FailOpen
		if cfg.Kind == TierKindAuth {
			cfg.OnStoreError = FailClosed
		}
	}
	methods := make([]string, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods = append(methods, strings.ToUpper(strings.TrimSpace(m)))
	}
	cfg.Methods = methods

	if err := cfg.Validate(); err != nil {
		return LimiterConfig{}, err
	}
	return cfg, nil
}

// Validate checks the invariants a tier needs before it may serve traffic.
func (c LimiterConfig) Validate() error {
	if c.Name == "" {
		return invalidConfig("", "name", "must not be empty")
	}
	if strings.Contains(c.Name, ":") {
		return invalidConfig(c.Name, "name", "must not contain ':'")
	}
	if c.Window <= 0 {
		return invalidConfig(c.Name, "window_ms", "must be greater than 0")
	}
	if c.Max < 0 {
		return invalidConfig(c.Name, "max", "must not be negative")
	}
	switch c.Strategy {
	case KeyStrategyIdentity, KeyStrategyAddress, KeyStrategyAPIKey:
	default:
		return invalidConfig(c.Name, "key_strategy", fmt.Sprintf("unknown strategy %q", c.Strategy))
	}
	if c.Kind == TierKindAPIKey && c.Strategy != KeyStrategyAPIKey {
		return invalidConfig(c.Name, "key_strategy", "must be apikey for an apikey tier")
	}
	if c.Elevates != "" && c.Strategy != KeyStrategyAPIKey {
		return invalidConfig(c.Name, "elevates", "is only valid on apikey tiers")
	}
	switch c.OnStoreError {
	case FailOpen, FailClosed:
	default:
		return invalidConfig(c.Name, "on_store_error", fmt.Sprintf("unknown policy %q", c.OnStoreError))
	}
	for _, p := range c.Paths {
		if !doublestar.ValidatePattern(p) {
			return invalidConfig(c.Name, "match.paths", fmt.Sprintf("invalid pattern %q", p))
		}
	}
	return nil
}

// RequiresAPIKey reports whether the tier is skipped for requests without a key.
func (c LimiterConfig) RequiresAPIKey() bool {
	return c.Strategy == KeyStrategyAPIKey
}

// FailsClosed reports whether a store failure denies the request.
func (c LimiterConfig) FailsClosed() bool {
	return c.OnStoreError == FailClosed
}

// Matches reports whether the tier applies to the given method and path.
func (c LimiterConfig) Matches(method, path string) bool {
	if len(c.Methods) > 0 {
		found := false
		for _, m := range c.Methods {
			if strings.EqualFold(m, method) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.Paths) == 0 {
		return true
	}
	for _, p := range c.Paths {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// ValidateTierSet checks rules that span tiers: unique names and elevation targets.
func ValidateTierSet(tiers []LimiterConfig) error {
	byName := make(map[string]LimiterConfig, len(tiers))
	for _, t := range tiers {
		if _, dup := byName[t.Name]; dup {
			return invalidConfig(t.Name, "name", "is not unique")
		}
		byName[t.Name] = t
	}
	for _, t := range tiers {
		if t.Elevates == "" {
			continue
		}
		target, ok := byName[t.Elevates]
		if !ok {
			return invalidConfig(t.Name, "elevates", fmt.Sprintf("references unknown tier %q", t.Elevates))
		}
		if target.RequiresAPIKey() {
			return invalidConfig(t.Name, "elevates", "cannot reference another apikey tier")
		}
	}
	return nil
}
