package cache

import (
	"context"
	"time"
)

// Cache is the minimal key-value surface the fraud caches are built on.
// Implementations serialize structs as JSON via SetJSON/GetJSON.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX writes only when the key is absent. Returns whether the
	// write happened.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Increment bumps an integer counter, creating it at 1.
	Increment(ctx context.Context, key string) (int64, error)

	// Expire attaches a TTL to an existing key. A missing key is
	// reported as ErrCacheKeyNotFound.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Close() error
}

// RateLimiter enforces a sliding-window request budget per key.
type RateLimiter interface {
	// Allow records one request against key and reports whether it
	// fits inside limit for the window. Denied requests are not
	// counted against the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Remaining reports how much of the budget is left right now.
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)

	// Reset forgets all recorded requests for key.
	Reset(ctx context.Context, key string) error
}

// Key layout. Everything this service writes to redis lives under the
// tfb: prefix so a shared instance stays navigable.
const (
	ThreatSnapshotKey      = "tfb:threats:snapshot"
	LatestAssessmentPrefix = "tfb:assessments:session:"
	RateLimitPrefix        = "tfb:ratelimit:"
)

// Default TTLs, used when a caller passes a non-positive one.
const (
	ThreatSnapshotTTL   = 5 * time.Minute
	LatestAssessmentTTL = 30 * time.Second
)

// ErrCacheKeyNotFound distinguishes a miss from a transport failure.
// Read-through callers treat it as "go to the store", not as an error.
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}
