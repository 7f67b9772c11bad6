// Package cache declares the key-value operations the summary cache needs
// from its backend.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// SetIndexed writes key and adds it to every index set.
	SetIndexed(ctx context.Context, key string, val []byte, ttl time.Duration, indexes ...string) error
	// Members returns the union of the index sets.
	Members(ctx context.Context, indexes ...string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int64, error)
}
