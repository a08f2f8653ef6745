package ratelimit

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Key is a bucket key. Tier names form disjoint prefixes and the identity
// segment names its kind, so keys never collide across tiers or identity kinds.
// Format: {prefix}:{tier}:{identity kind}:{identity}
type Key string

func (k Key) String() string {
	return string(k)
}

// IdentityKind names the identity segment of a bucket key.
type IdentityKind string

const (
	IdentityAPIKey  IdentityKind = "apikey"
	IdentityUser    IdentityKind = "user"
	IdentityAddress IdentityKind = "addr"
)

const unknownAddress = "unknown"

// KeyResolver derives bucket keys from request identity.
type KeyResolver struct {
	prefix string
}

func NewKeyResolver(prefix string) KeyResolver {
	return KeyResolver{prefix: strings.Trim(prefix, ":")}
}

// Resolve returns the bucket key for req under tier. Precedence: API key (for
// tiers keyed on it), then authenticated principal, then source address. The
// second result is false when the tier needs an API key and none is present.
func (r KeyResolver) Resolve(req RequestContext, tier LimiterConfig) (Key, bool) {
	switch tier.Strategy {
	case KeyStrategyAPIKey:
		if !req.HasAPIKey() {
			return "", false
		}
		return r.Build(tier.Name, IdentityAPIKey, req.APIKey), true
	case KeyStrategyAddress:
		return r.Build(tier.Name, IdentityAddress, req.SourceAddress), true
	}

	if req.PrincipalID != "" {
		return r.Build(tier.Name, IdentityUser, req.PrincipalID), true
	}
	return r.Build(tier.Name, IdentityAddress, req.SourceAddress), true
}

// Build assembles a bucket key for an explicit identity. API keys are stored
// as a BLAKE2b-256 digest so raw secrets never reach the shared store.
func (r KeyResolver) Build(tier string, kind IdentityKind, identity string) Key {
	switch kind {
	case IdentityAPIKey:
		identity = DigestAPIKey(identity)
	case IdentityAddress:
		if identity == "" {
			identity = unknownAddress
		}
	}

	var b strings.Builder
	if r.prefix != "" {
		b.WriteString(r.prefix)
		b.WriteByte(':')
	}
	b.WriteString(tier)
	b.WriteByte(':')
	b.WriteString(string(kind))
	b.WriteByte(':')
	b.WriteString(identity)
	return Key(b.String())
}

// DigestAPIKey returns the hex BLAKE2b-256 digest of an API key.
func DigestAPIKey(apiKey string) string {
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
