package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "aegis:dispatch:rl:"

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the oldest request in the window expires and frees a
	// slot.
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter counts requests per key over a sliding window held in a Redis
// sorted set. A nil Scripter disables limiting.
type Limiter struct {
	rdb redis.Scripter
}

func NewLimiter(rdb redis.Scripter) *Limiter {
	return &Limiter{rdb: rdb}
}

// slidingWindowScript trims the window, records the hit if there is room and
// reports the score of the oldest hit still inside the window.
//
//	KEYS[1]  sorted set key
//	ARGV[1]  window start, unix micro
//	ARGV[2]  now, unix micro
//	ARGV[3]  limit
//	ARGV[4]  key TTL in seconds
//
// Returns {count, allowed, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    count = count + 1
    allowed = 1
end
redis.call('EXPIRE', key, ARGV[4])

local oldest = now
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
    oldest = tonumber(head[2])
end
return {count, allowed, oldest}
`)

// Check records a request against key. Redis failures fail open: the result
// allows the request and the error is returned for logging.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := time.Now()
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}

	ttlSecs := int64(window.Seconds()) + 1
	res, err := slidingWindowScript.Run(ctx, l.rdb, []string{keyPrefix + key},
		now.Add(-window).UnixMicro(), now.UnixMicro(), limit, ttlSecs,
	).Int64Slice()
	if err == nil && len(res) != 3 {
		err = fmt.Errorf("unexpected script reply of %d values", len(res))
	}
	if err != nil {
		return LimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)},
			fmt.Errorf("rate limit check %s: %w", key, err)
	}

	return windowResult(now, res[0], res[1] == 1, time.UnixMicro(res[2]), limit, window), nil
}

func windowResult(now time.Time, count int64, allowed bool, oldest time.Time, limit int64, window time.Duration) LimitResult {
	resetAt := oldest.Add(window)
	r := LimitResult{
		Allowed:   allowed,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		r.RetryAfter = max(resetAt.Sub(now), time.Second)
	}
	return r
}
