package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// RedisBackend stores entries in Redis under a fixed namespace.
type RedisBackend struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisBackend wraps client. A zero ttl stores entries without expiry.
func NewRedisBackend(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisBackend {
	if namespace != "" && !strings.HasSuffix(namespace, ":") {
		namespace += ":"
	}
	return &RedisBackend{client: client, namespace: namespace, ttl: ttl}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := b.client.Get(ctx, b.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	return payload, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.client.Set(ctx, b.namespace+key, value, b.ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = b.namespace + key
	}
	if err := b.client.Unlink(ctx, full...).Err(); err != nil {
		return fmt.Errorf("platform/cache: delete: %w", err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN and unlinks every match in batches.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefixes ...string) error {
	for _, prefix := range prefixes {
		pattern := escapeGlob(b.namespace+prefix) + "*"
		var cursor uint64
		for {
			keys, next, err := b.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				return fmt.Errorf("platform/cache: scan %s: %w", prefix, err)
			}
			if len(keys) > 0 {
				if err := b.client.Unlink(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("platform/cache: unlink %s: %w", prefix, err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
