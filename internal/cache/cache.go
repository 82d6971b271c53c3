package cache

import (
	"context"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	key := "stockcast"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
