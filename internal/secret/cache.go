package secret

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedResolver decorates a Resolver with in-memory caching. Webhook
// dispatches resolve their bearer token on every request, so hitting the
// underlying source each time is wasteful.
type CachedResolver struct {
	inner Resolver
	cache *cache.Cache
}

// NewCachedResolver wraps inner with a cache. Entries expire after ttl.
func NewCachedResolver(inner Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: cache.New(ttl, ttl*2),
	}
}

// Resolve returns the cached value or delegates to the inner resolver.
func (r *CachedResolver) Resolve(ctx context.Context, path string) (string, error) {
	if val, found := r.cache.Get(path); found {
		if str, ok := val.(string); ok {
			return str, nil
		}
	}

	val, err := r.inner.Resolve(ctx, path)
	if err != nil {
		return "", err
	}

	r.cache.Set(path, val, cache.DefaultExpiration)
	return val, nil
}

// Close closes the inner resolver.
func (r *CachedResolver) Close() error {
	return r.inner.Close()
}
