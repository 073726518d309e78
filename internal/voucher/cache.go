package voucher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedResolver fronts another Resolver with a Redis cache. Mappings change
// rarely, so a short TTL keeps every posting path off the mapping table
// without a dedicated invalidation channel. Lookups that miss collapse onto
// one upstream call per kind via singleflight.
type CachedResolver struct {
	next  Resolver
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedResolver wraps next with a Redis-backed cache.
func NewCachedResolver(next Resolver, rdb *redis.Client, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedResolver{next: next, rdb: rdb, ttl: ttl}
}

func cacheKey(kind DocumentKind) string {
	return "acctmap:" + string(kind)
}

// Resolve serves from cache when possible, otherwise asks the wrapped
// resolver and stores the result. Redis failures degrade to pass-through.
func (c *CachedResolver) Resolve(ctx context.Context, kind DocumentKind) (AccountPair, error) {
	if c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, cacheKey(kind)).Bytes(); err == nil {
			var pair AccountPair
			if err := json.Unmarshal(raw, &pair); err == nil {
				return pair, nil
			}
		}
	}

	val, err, _ := c.group.Do(string(kind), func() (any, error) {
		pair, err := c.next.Resolve(ctx, kind)
		if err != nil {
			return AccountPair{}, err
		}
		if c.rdb != nil {
			if raw, err := json.Marshal(pair); err == nil {
				c.rdb.Set(ctx, cacheKey(kind), raw, c.ttl)
			}
		}
		return pair, nil
	})
	if err != nil {
		return AccountPair{}, err
	}
	return val.(AccountPair), nil
}
