package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a per-client sliding window rate limiter using Redis.
// Each client key is a sorted set of request members scored by arrival time;
// a Lua script cleans expired entries, checks the count and adds the new
// entry atomically.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.floor(window / 1000) + 1)
    return 1
else
    return 0
end
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
	}
}

func rlKey(clientKey string) string {
	return fmt.Sprintf("rl:webhook:%s", clientKey)
}

// Allow reports whether another request from clientKey fits within limit
// requests per window. A limit of zero or less disables limiting.
func (rl *RateLimiter) Allow(ctx context.Context, clientKey string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixMilli(), now.UnixNano()%100000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(clientKey)},
		now.UnixMilli(), rl.window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		// Fail open: a Redis outage must not block provider deliveries.
		rl.logger.Error("rate limiter script failed", "error", err, "client", clientKey)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "client", clientKey, "limit", limit)
		return false
	}

	return true
}
