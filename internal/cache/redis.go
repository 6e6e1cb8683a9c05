package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Belphemur/SubTranslate/internal/apperrors"
)

const defaultRedisPrefix = "subtrans:"

func init() {
	Register(KindRedis, openRedis)
}

// redisStore shares translations between instances through one Redis hash,
// {prefix}translations, mapping cache key to translated text. A TTL is set
// per field with HPEXPIRE, which needs Redis 7.4+ or Valkey 9+. Memory is
// bounded by the server's own maxmemory policy, so MaxEntries is ignored.
type redisStore struct {
	client *redis.Client
	hash   string
	ttl    time.Duration
	opts   Options
}

func openRedis(opts Options) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Redis.Address,
		Password: opts.Redis.Password,
		DB:       opts.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: reach redis at %s: %w", opts.Redis.Address, err)
	}

	prefix := opts.Redis.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisStore{
		client: client,
		hash:   prefix + "translations",
		ttl:    opts.TTL,
		opts:   opts,
	}, nil
}

func (r *redisStore) Get(key string) (string, bool) {
	value, ok := r.GetMany([]string{key})[key]
	return value, ok
}

func (r *redisStore) GetMany(keys []string) map[string]string {
	found := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return found
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	values, err := r.client.HMGet(ctx, r.hash, keys...).Result()
	if err != nil {
		r.opts.logError("redis cache lookup failed", err)
		return found
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			found[keys[i]] = s
		}
	}
	return found
}

func (r *redisStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.hash, key, value)
		if r.ttl > 0 {
			pipe.HPExpire(ctx, r.hash, r.ttl, key)
		}
		return nil
	})
	if err != nil {
		return &apperrors.CacheIOError{Op: "redis write", Err: err}
	}
	return nil
}

func (r *redisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := r.client.HLen(ctx, r.hash).Result()
	if err != nil {
		r.opts.logError("redis cache size failed", err)
		return 0
	}
	return int(n)
}

func (r *redisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Del(ctx, r.hash).Err(); err != nil {
		return &apperrors.CacheIOError{Op: "redis clear", Err: err}
	}
	return nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
