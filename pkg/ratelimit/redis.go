package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript checks both ceilings and increments both counters in one step.
// Each key gets its expiry on first increment.
// Returns {allowed, violated (0 none, 1 hourly, 2 daily), hourly, daily, hourly_pttl, daily_pttl}.
var consumeScript = redis.NewScript(`
local h = tonumber(redis.call('GET', KEYS[1]) or '0')
local d = tonumber(redis.call('GET', KEYS[2]) or '0')
local violated = 0
if h >= tonumber(ARGV[1]) then
	violated = 1
elseif d >= tonumber(ARGV[2]) then
	violated = 2
end
if violated == 0 then
	h = redis.call('INCR', KEYS[1])
	if h == 1 then redis.call('PEXPIRE', KEYS[1], ARGV[3]) end
	d = redis.call('INCR', KEYS[2])
	if d == 1 then redis.call('PEXPIRE', KEYS[2], ARGV[4]) end
end
local allowed = 0
if violated == 0 then allowed = 1 end
return {allowed, violated, h, d, redis.call('PTTL', KEYS[1]), redis.call('PTTL', KEYS[2])}
`)

// RedisStore keeps counters in Redis so limits are shared across replicas.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore. The client is owned by the caller.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix + "ratelimit:"}
}

func (s *RedisStore) keys(clientID string) []string {
	return []string{s.prefix + clientID + ":hourly", s.prefix + clientID + ":daily"}
}

// Consume runs the check-and-increment script. Expiry comes from Redis, so
// now only anchors the reported reset times.
func (s *RedisStore) Consume(ctx context.Context, clientID string, limits Limits, now time.Time) (Result, error) {
	vals, err := consumeScript.Run(ctx, s.rdb, s.keys(clientID),
		limits.Hourly, limits.Daily, HourWindow.Milliseconds(), DayWindow.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 6 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}

	u := Usage{
		Hourly: counterFromTTL(vals[2], vals[4], now),
		Daily:  counterFromTTL(vals[3], vals[5], now),
	}
	switch vals[1] {
	case 1:
		return reject(Hourly, limits.Hourly, u, u.Hourly.ResetAt.Sub(now)), nil
	case 2:
		return reject(Daily, limits.Daily, u, u.Daily.ResetAt.Sub(now)), nil
	}
	return Result{Allowed: true, Usage: u}, nil
}

// Usage reads both counters and their remaining lifetimes.
func (s *RedisStore) Usage(ctx context.Context, clientID string, now time.Time) (Usage, error) {
	keys := s.keys(clientID)
	var u Usage
	for i, key := range keys {
		n, err := s.rdb.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Usage{}, fmt.Errorf("rate limit usage: %w", err)
		}
		ttl, err := s.rdb.PTTL(ctx, key).Result()
		if err != nil {
			return Usage{}, fmt.Errorf("rate limit ttl: %w", err)
		}
		c := counterFromTTL(n, ttl.Milliseconds(), now)
		if i == 0 {
			u.Hourly = c
		} else {
			u.Daily = c
		}
	}
	return u, nil
}

// Close is a no-op; the Redis client is shared and closed by its owner.
func (s *RedisStore) Close() error { return nil }

func counterFromTTL(count, pttl int64, now time.Time) Counter {
	if count <= 0 || pttl <= 0 {
		return Counter{Count: count}
	}
	return Counter{Count: count, ResetAt: now.Add(time.Duration(pttl) * time.Millisecond)}
}
