package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable reports that the shared counter store could not be
	// reached or did not answer within its timeout.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")

	// ErrInvalidConfig reports a limiter configuration that must not be served.
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
)

// StoreUnavailableError wraps the store failure for one bucket key.
type StoreUnavailableError struct {
	Key Key
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("rate limit store unavailable for %s: %v", e.Key, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// InvalidConfigError describes a single configuration violation.
type InvalidConfigError struct {
	Tier   string
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	if e.Tier == "" {
		return fmt.Sprintf("invalid rate limit configuration: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid rate limit configuration: tier %q: %s %s", e.Tier, e.Field, e.Reason)
}

func (e *InvalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func invalidConfig(tier, field, reason string) error {
	return &InvalidConfigError{Tier: tier, Field: field, Reason: reason}
}
