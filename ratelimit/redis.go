package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript runs one fixed-window step. It returns
// {allowed, count, pttl}. A rejected call leaves the counter untouched.
var fixedWindowScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local ttl = redis.call('PTTL', KEYS[1])
if count == 0 or ttl <= 0 then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[1])
  return {1, 1, tonumber(ARGV[1])}
end
if count >= tonumber(ARGV[2]) then
  return {0, count, ttl}
end
count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps entries in Redis so that every process behind a load
// balancer draws from the same budget. Expired keys are evicted by Redis
// itself.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ AtomicStore = (*RedisStore)(nil)

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix), nil
}

func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Take(ctx context.Context, key string, rule Rule, now time.Time) (Result, error) {
	vals, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		rule.Window.Milliseconds(), rule.Max,
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected script reply %v", vals)
	}

	allowed := vals[0] == 1
	count := int(vals[1])
	resetAt := now.Add(time.Duration(vals[2]) * time.Millisecond)

	remaining := rule.Max - count
	if !allowed || remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: allowed, Limit: rule.Max, Remaining: remaining, ResetAt: resetAt}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, s.prefix+key)
	ttl := pipe.PTTL(ctx, s.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, err
	}

	raw, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return Entry{}, false, fmt.Errorf("corrupt counter for %q: %w", key, err)
	}
	remaining := ttl.Val()
	if remaining <= 0 {
		return Entry{}, false, nil
	}
	return Entry{Count: count, ResetAt: time.Now().Add(remaining)}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry) error {
	ttl := time.Until(entry.ResetAt)
	if ttl <= 0 {
		return s.client.Del(ctx, s.prefix+key).Err()
	}
	return s.client.Set(ctx, s.prefix+key, entry.Count, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Sweep is a no-op: keys carry their own expiry.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
