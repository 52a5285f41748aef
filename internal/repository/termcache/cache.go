// Package termcache caches computed term and facet value lists, which are
// expensive to aggregate and stable between index updates. Drivers: process
// memory or a shared redis instance.
package termcache

import (
	"context"
	"time"
)

// Cache stores serialized value lists under string keys.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Invalidate drops every cached entry; called after index updates.
	Invalidate(ctx context.Context)
}
