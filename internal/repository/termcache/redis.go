package termcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Redis is a shared cache backed by a redis instance, for deployments with
// several presentation nodes in front of one index.
type Redis struct {
	client rueidis.Client
	prefix string
}

// NewRedis connects to redis.
func NewRedis(addrs []string, password, keyPrefix string) (*Redis, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: addrs,
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("termcache: connect redis: %w", err)
	}
	return &Redis{client: client, prefix: keyPrefix}, nil
}

// Close releases the redis connection.
func (r *Redis) Close() {
	r.client.Close()
}

// Get returns the cached value if present. Redis failures degrade to a cache
// miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(r.prefix+key).Build())
	value, err := resp.AsBytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores a value with a ttl. Redis failures are ignored; the cache is an
// optimization only.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	cmd := r.client.B().Set().Key(r.prefix + key).Value(rueidis.BinaryString(value)).
		Ex(ttl).Build()
	_ = r.client.Do(ctx, cmd).Error()
}

// Invalidate drops every entry under the cache prefix.
func (r *Redis) Invalidate(ctx context.Context) {
	var cursor uint64
	for {
		resp := r.client.Do(ctx, r.client.B().Scan().Cursor(cursor).Match(r.prefix+"*").Count(256).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return
		}
		if len(entry.Elements) > 0 {
			_ = r.client.Do(ctx, r.client.B().Del().Key(entry.Elements...).Build()).Error()
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return
		}
	}
}
