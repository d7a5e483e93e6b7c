package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultExpire = 60 * time.Second

// Caches owns the three logical Redis databases the service uses: a generic
// object cache, the blocked access token cache and the active refresh token
// cache. It is constructed once in main and passed by reference to everything
// that needs it; Close tears all three clients down.
type Caches struct {
	Generic       *redis.Client
	BlockedTokens *redis.Client
	RefreshTokens *redis.Client
}

func New(ctx context.Context, addr string) (*Caches, error) {
	c := &Caches{
		Generic:       redis.NewClient(&redis.Options{Addr: addr, DB: 1}),
		BlockedTokens: redis.NewClient(&redis.Options{Addr: addr, DB: 2}),
		RefreshTokens: redis.NewClient(&redis.Options{Addr: addr, DB: 3}),
	}

	for _, rdb := range []*redis.Client{c.Generic, c.BlockedTokens, c.RefreshTokens} {
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	return c, nil
}

func (c *Caches) Close() error {
	var firstErr error
	for _, rdb := range []*redis.Client{c.Generic, c.BlockedTokens, c.RefreshTokens} {
		if err := rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
