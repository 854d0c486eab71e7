// Package cache provides the key/value backends used for read caching.
package cache

import (
	"context"
	"errors"
)

// ErrMiss reports that a key holds no entry.
var ErrMiss = errors.New("platform/cache: miss")

// Backend is a byte-oriented key/value store. Implementations must be safe for
// concurrent use. Any error other than ErrMiss means the backend is unhealthy.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix drops every key starting with one of prefixes.
	DeletePrefix(ctx context.Context, prefixes ...string) error
}
