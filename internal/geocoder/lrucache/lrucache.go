// Package lrucache memoizes positive geocoding answers in process.
package lrucache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/observability"
	"github.com/mohammed-shakir/coverage-lookup/internal/geocoder"
)

// Cache wraps a Geocoder. Misses and errors are never stored, so a
// transient provider failure is retried on the next call.
type Cache struct {
	inner geocoder.Geocoder
	lru   *expirable.LRU[string, model.GeodeticPoint]
}

func New(inner geocoder.Geocoder, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 4096
	}
	return &Cache{
		inner: inner,
		lru:   expirable.NewLRU[string, model.GeodeticPoint](size, nil, ttl),
	}
}

func (c *Cache) Geocode(ctx context.Context, address string) (*model.GeodeticPoint, error) {
	key := normalize(address)
	if p, ok := c.lru.Get(key); ok {
		observability.IncCacheHit("geocode")
		return &p, nil
	}
	observability.IncCacheMiss("geocode")

	p, err := c.inner.Geocode(ctx, address)
	if err != nil || p == nil {
		return p, err
	}
	c.lru.Add(key, *p)
	return p, nil
}

func (c *Cache) Len() int { return c.lru.Len() }

// normalize folds case and runs of whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
