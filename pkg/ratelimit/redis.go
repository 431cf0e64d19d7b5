package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTokenBucketScript implements a token bucket atomically in Lua so
// check-and-decrement never races across runtime instances sharing the
// same Redis. KEYS[1] is the bucket key; ARGV is (capacity, refill_per_sec,
// now_ms).
const redisTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local bucket = redis.call("HMGET", key, "tokens", "updated_ms")
local tokens = tonumber(bucket[1])
local updated_ms = tonumber(bucket[2])

if tokens == nil then
  tokens = capacity
  updated_ms = now_ms
end

local elapsed_sec = math.max(0, now_ms - updated_ms) / 1000.0
tokens = math.min(capacity, tokens + elapsed_sec * refill_per_sec)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "updated_ms", now_ms)
redis.call("EXPIRE", key, 3600)

return allowed
`

// RedisLimiter is a distributed token-bucket Limiter shared across runtime
// instances via a Redis server.
type RedisLimiter struct {
	client         *redis.Client
	script         *redis.Script
	capacity       float64
	refillPerSec   float64
	keyPrefix      string
}

// NewRedisLimiter returns a RedisLimiter allowing refillPerSec sustained
// throughput per key with capacity burst tokens, sharing buckets across
// every caller of client.
func NewRedisLimiter(client *redis.Client, capacity, refillPerSec float64) *RedisLimiter {
	return &RedisLimiter{
		client:       client,
		script:       redis.NewScript(redisTokenBucketScript),
		capacity:     capacity,
		refillPerSec: refillPerSec,
		keyPrefix:    "openagents:ratelimit:",
	}
}

// Allow implements Limiter. On any Redis error, Allow fails open (returns
// true) rather than blocking runtime operation on limiter availability.
func (l *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	result, err := l.script.Run(ctx, l.client, []string{l.keyPrefix + key},
		l.capacity, l.refillPerSec, time.Now().UnixMilli()).Int()
	if err != nil {
		return true
	}
	return result == 1
}

// AllowContext is like Allow but propagates ctx to the Redis call and
// returns the error instead of failing open, for callers that want to
// distinguish limiter unavailability from a denied request.
func (l *RedisLimiter) AllowContext(ctx context.Context, key string) (bool, error) {
	result, err := l.script.Run(ctx, l.client, []string{l.keyPrefix + key},
		l.capacity, l.refillPerSec, time.Now().UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("evaluate rate limit script: %w", err)
	}
	return result == 1, nil
}
