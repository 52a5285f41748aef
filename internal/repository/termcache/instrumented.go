package termcache

import (
	"context"
	"time"

	"github.com/biblios/discovery/internal/metrics"
)

// Instrumented decorates a Cache with hit/miss metrics.
type Instrumented struct {
	inner Cache
}

// NewInstrumented wraps a cache driver with metrics recording.
func NewInstrumented(inner Cache) *Instrumented {
	return &Instrumented{inner: inner}
}

func (c *Instrumented) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok := c.inner.Get(ctx, key)
	if ok {
		metrics.TermCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.TermCacheTotal.WithLabelValues("miss").Inc()
	}
	return value, ok
}

func (c *Instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.inner.Set(ctx, key, value, ttl)
}

func (c *Instrumented) Invalidate(ctx context.Context) {
	c.inner.Invalidate(ctx)
}
