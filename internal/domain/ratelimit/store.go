package ratelimit

import (
	"context"
	"time"
)

// WindowCount is the result of recording one attempt in a sliding window.
type WindowCount struct {
	// TotalHits counts the non-expired entries including the one just recorded.
	TotalHits int64
	// ReleaseAt is the timestamp of the entry whose expiry brings the bucket
	// back under its limit. Zero when the bucket is not over the limit or the
	// store could not tell.
	ReleaseAt time.Time
}

// WindowStore is the shared, atomic sliding-window counter. It deliberately
// has no decrement: entries only age out of the window.
type WindowStore interface {
	// RecordAndCount trims entries older than now-window, records one entry at
	// now, counts the bucket and refreshes its expiry, all in one atomic step.
	// limit is used only to locate ReleaseAt. Failures return an error
	// matching ErrStoreUnavailable.
	RecordAndCount(ctx context.Context, key Key, now time.Time, window time.Duration, limit int) (WindowCount, error)

	// Count returns the non-expired entries without recording one.
	Count(ctx context.Context, key Key, now time.Time, window time.Duration) (int64, error)

	// Reset clears a whole bucket.
	Reset(ctx context.Context, key Key) error
}
