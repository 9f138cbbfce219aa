package redisStore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func (s *Store) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *Store) IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

// SetIfAbsent is SETNX with a TTL, used as a short lived lock
func (s *Store) SetIfAbsent(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, expiration).Result()
}

var (
	releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	expireIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// DelIfValue deletes key only while it still holds value
func (s *Store) DelIfValue(ctx context.Context, key string, value string) (bool, error) {
	n, err := releaseIfOwner.Run(ctx, s.client, []string{key}, value).Int64()
	return n == 1, err
}

// ExpireIfValue resets the ttl of key only while it still holds value
func (s *Store) ExpireIfValue(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	n, err := expireIfOwner.Run(ctx, s.client, []string{key}, value, expiration.Milliseconds()).Int64()
	return n == 1, err
}

func (s *Store) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return s.client.Expire(ctx, key, expiration).Err()
}

// ListPush appends to the tail of the list, the list keeps insertion order
func (s *Store) ListPush(ctx context.Context, key string, value interface{}) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.getCount(ctx, key)
	return count > 0, err
}

func (s *Store) getCount(ctx context.Context, key string) (int64, error) {
	return s.client.Exists(ctx, key).Result()
}

// ListGetLast returns the newest n entries, oldest first
func (s *Store) ListGetLast(ctx context.Context, key string, n int64) ([]string, error) {
	if n <= 0 {
		return s.ListGetAll(ctx, key)
	}
	return s.listRange(ctx, key, -n)
}

func (s *Store) ListGetAll(ctx context.Context, key string) ([]string, error) {
	return s.listRange(ctx, key, int64(0))
}

func (s *Store) listRange(ctx context.Context, key string, start int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, -1).Result()
}
