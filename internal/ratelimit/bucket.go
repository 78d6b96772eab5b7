// Package ratelimit implements a token bucket kept in Redis so every bot
// worker and HTTP handler draws from the same per-key budget.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/meeting-room-bot/internal/config"
)

var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

var allowAll = Decision{Allowed: true}

type Bucket struct {
	rdb *redis.Client
	cfg config.RateLimitConfig
	now func() time.Time
}

// New returns nil when limiting is disabled or Redis is unavailable; a nil
// *Bucket allows everything.
func New(cfg config.RateLimitConfig, rdb *redis.Client) *Bucket {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return &Bucket{rdb: rdb, cfg: cfg, now: time.Now}
}

// Capacity is the bucket size, 0 for a nil bucket.
func (b *Bucket) Capacity() int {
	if b == nil {
		return 0
	}
	return b.cfg.Capacity
}

// Allow takes one token for key.  Redis errors fail open: the returned
// decision allows the request and the error is reported for logging.
func (b *Bucket) Allow(ctx context.Context, key string) (Decision, error) {
	if b == nil {
		return allowAll, nil
	}
	args := []interface{}{
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(b.cfg.TTL / time.Second),
	}
	vals, err := bucketScript.Run(ctx, b.rdb, []string{b.Key(key)}, args...).Result()
	if err != nil {
		return allowAll, fmt.Errorf("rate limit %s: %w", key, err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return allowAll, fmt.Errorf("rate limit %s: unexpected script result %#v", key, vals)
	}
	return Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

// Key builds the Redis key for a logical key such as "user:42" or "ip:1.2.3.4".
func (b *Bucket) Key(parts ...string) string {
	return strings.Join(append([]string{b.cfg.Prefix}, parts...), ":")
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
