// Package cache holds the Redis client setup shared by the API and worker
// binaries.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client for addr. The client is returned even when the
// ping fails: everything built on it degrades to pass-through, so an
// unreachable Redis is reported to the caller but does not block startup.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("platform/cache: ping: %w", err)
	}
	return client, nil
}
