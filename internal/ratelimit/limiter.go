// Package ratelimit caps how many writes a cashier station may send per
// window. Counters are kept by ulule/limiter so every API instance shares
// them through Redis.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of counting one event.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RetryAfter is the whole seconds left until the window resets.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.Reset.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// Limiter counts one event under key against limit per window.
type Limiter interface {
	Take(ctx context.Context, key string, window time.Duration, limit int) (Decision, error)
}

// StoreLimiter implements Limiter with a fixed-window limiter.Store.
type StoreLimiter struct {
	Store limiter.Store
}

// NewRedisLimiter builds a StoreLimiter whose counters live in Redis under prefix.
func NewRedisLimiter(rdb *redis.Client, prefix string) (StoreLimiter, error) {
	if rdb == nil {
		return StoreLimiter{}, errors.New("ratelimit: redis client not configured")
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return StoreLimiter{}, err
	}
	return StoreLimiter{Store: store}, nil
}

// Take increments the counter for key. A missing store or a non-positive
// limit allows everything.
func (l StoreLimiter) Take(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	if l.Store == nil || limit <= 0 || window <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	state, err := l.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(limit)})
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !state.Reached,
		Limit:     int(state.Limit),
		Remaining: int(state.Remaining),
		Reset:     time.Unix(state.Reset, 0),
	}, nil
}
