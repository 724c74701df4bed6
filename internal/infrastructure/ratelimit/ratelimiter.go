package ratelimit

import (
	"context"
	"time"
)

// RateLimiter answers whether one more request under key fits inside the
// window. Implementations may fail; callers decide whether to fail open.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}
