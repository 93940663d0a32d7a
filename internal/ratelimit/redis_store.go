package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const slidingWindowScript = `
local window = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

local cutoff = now - window
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", cutoff)

local count = redis.call("ZCARD", KEYS[1])
local allowed = 0
if count < max then
  allowed = 1
  redis.call("ZADD", KEYS[1], now, member)
  count = count + 1
end

redis.call("PEXPIRE", KEYS[1], window)

return {allowed, count}
`

// RedisStore keeps request windows in a Redis sorted set so quotas hold
// across all processes sharing the store.
type RedisStore struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{
		client: client,
		script: redis.NewScript(slidingWindowScript),
	}
}

func (s *RedisStore) Slide(ctx context.Context, key string, now time.Time, window time.Duration, max int) (bool, int, error) {
	if s == nil || s.client == nil {
		return false, 0, errors.New("window store not configured")
	}
	if key == "" {
		return false, 0, errors.New("window key is empty")
	}
	if window <= 0 || max <= 0 {
		return false, 0, errors.New("window and max must be positive")
	}

	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	res, err := s.script.Run(
		ctx,
		s.client,
		[]string{key},
		int64(window/time.Millisecond),
		max,
		now.UnixMilli(),
		member,
	).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) < 2 {
		return false, 0, fmt.Errorf("invalid sliding window script response")
	}

	allowed := castToInt(res[0]) == 1
	count := int(castToInt(res[1]))
	return allowed, count, nil
}

func (s *RedisStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("window store not configured")
	}

	cutoff := now.Add(-window).UnixMilli()
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	count, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
