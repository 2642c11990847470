package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

const defaultPrefix = "learnai:ratelimit"

// FixedWindowLimiter limits requests per key in a fixed time window.
// With a Redis client the counters are shared across replicas; without one
// they live in process memory.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	redisClient *redis.Client
	redisPrefix string

	mu     sync.Mutex
	counts map[string]windowCount
}

type windowCount struct {
	slot  int64
	count int
}

// NewFixedWindowLimiter creates a limiter. client may be nil.
func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &FixedWindowLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		redisClient: client,
		redisPrefix: prefix,
		counts:      make(map[string]windowCount),
	}, nil
}

// Allow reports whether key is within quota and, when it is not, how long
// until the current window closes. Redis failures fail closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil {
		return false, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	nowMs := l.now().UTC().UnixMilli()
	windowMs := l.window.Milliseconds()
	slot := nowMs / windowMs
	retryAfter := time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond

	var allowed bool
	if l.redisClient != nil {
		allowed = l.allowRedis(ctx, key, slot, windowMs)
	} else {
		allowed = l.allowLocal(key, slot)
	}
	if allowed {
		return true, 0
	}
	return false, retryAfter
}

func (l *FixedWindowLimiter) allowRedis(ctx context.Context, key string, slot, windowMs int64) bool {
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}

func (l *FixedWindowLimiter) allowLocal(key string, slot int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.counts[key]
	if c.slot != slot {
		c = windowCount{slot: slot}
		if len(l.counts) > 10000 {
			l.pruneLocked(slot)
		}
	}
	c.count++
	l.counts[key] = c
	return c.count <= l.limit
}

func (l *FixedWindowLimiter) pruneLocked(slot int64) {
	for k, c := range l.counts {
		if c.slot != slot {
			delete(l.counts, k)
		}
	}
}
