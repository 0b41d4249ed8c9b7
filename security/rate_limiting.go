package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles queue joins with Redis counters so a single phone
// number or address cannot flood an establishment's queue. Without a Redis
// client (in-memory deployments) every request is allowed.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
	}
}

// AllowJoin reports whether another join is allowed for the identifier
// (phone or client IP). Counter errors fail open: rate limiting is a guard,
// not a dependency.
func (r *RateLimiter) AllowJoin(ctx context.Context, identifier string) bool {
	if r.redis == nil || r.limit <= 0 {
		return true
	}

	key := fmt.Sprintf("ratelimit:join:%s", identifier)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("rate limit counter unavailable", "identifier", identifier, "error", err)
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}

	return count <= int64(r.limit)
}
