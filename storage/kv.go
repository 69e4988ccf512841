package storage

import (
	"context"
	"errors"
	"os"
)

// KV is the minimal key-value surface the state store needs. All three
// backends store the document as one opaque string value under one key.
type KV interface {
	// GetString returns the value and whether the key exists.
	GetString(ctx context.Context, key string) (string, bool, error)
	SetBody(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}

// NewKVFromEnv picks a backend from the environment. Native Redis wins when
// configured, then Upstash REST, then Azure Table storage.
func NewKVFromEnv() (KV, error) {
	if hasRedisEnv() {
		return newRedisKV()
	}
	if hasUpstashEnv() {
		return newUpstashKV()
	}
	if hasTableEnv() {
		return newTableKV()
	}
	return nil, errors.New("no Redis, Upstash or Azure Table environment variables found")
}

func hasRedisEnv() bool {
	return os.Getenv("REDIS_URL") != "" ||
		(os.Getenv("REDIS_HOST") != "" && os.Getenv("REDIS_PORT") != "")
}

func hasUpstashEnv() bool {
	return os.Getenv("UPSTASH_REDIS_REST_URL") != "" &&
		os.Getenv("UPSTASH_REDIS_REST_TOKEN") != ""
}

func hasTableEnv() bool {
	return os.Getenv("AZURE_STORAGE_CONNECTION_STRING") != ""
}
