package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV talks to a Redis instance over its native protocol.
type RedisKV struct {
	client *redis.Client
}

func newRedisKV() (*RedisKV, error) {
	if url := strings.TrimSpace(os.Getenv("REDIS_URL")); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		opts.DialTimeout = 5 * time.Second
		opts.ReadTimeout = 3 * time.Second
		opts.WriteTimeout = 3 * time.Second
		return &RedisKV{client: redis.NewClient(opts)}, nil
	}

	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	port := strings.TrimSpace(os.Getenv("REDIS_PORT"))
	pass := strings.TrimSpace(os.Getenv("REDIS_PASSWORD"))
	if host == "" || port == "" {
		return nil, errors.New("missing REDIS_URL or REDIS_HOST/REDIS_PORT")
	}
	return &RedisKV{client: redis.NewClient(&redis.Options{
		Addr:        host + ":" + port,
		Password:    pass,
		DB:          0,
		DialTimeout: 5 * time.Second,
	})}, nil
}

// NewRedisKV wraps an existing client, mainly for tests.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) GetString(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) SetBody(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
