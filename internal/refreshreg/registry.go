package refreshreg

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nikpetrovv/blog_service/internal/tokens"
)

// Registry tracks, per username, which refresh tokens are currently
// exchangeable. The value is a Redis list keyed by username; RPUSH keeps
// concurrent registrations for the same user atomic, so there is no
// read-modify-write window. This state is cache-only: if Redis loses it,
// refresh degrades to signature-plus-expiry checks until users log in again.
type Registry struct {
	RDB *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{RDB: rdb}
}

// Register appends the token to the user's set. Token ids are unique per
// mint, so duplicates are not a concern.
func (r *Registry) Register(ctx context.Context, username, refreshToken string) error {
	pipe := r.RDB.TxPipeline()
	pipe.RPush(ctx, username, refreshToken)
	pipe.Expire(ctx, username, tokens.RefreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refresh registry: %w", err)
	}
	return nil
}

// IsActive reports whether the token is a member of the user's current set.
// Absence means the token cannot be exchanged even if its signature and
// expiry are otherwise valid.
func (r *Registry) IsActive(ctx context.Context, username, refreshToken string) (bool, error) {
	list, err := r.RDB.LRange(ctx, username, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("refresh registry: %w", err)
	}
	for _, t := range list {
		if t == refreshToken {
			return true, nil
		}
	}
	return false, nil
}

// RevokeAll clears the user's set. This is the "logout of all devices"
// primitive.
func (r *Registry) RevokeAll(ctx context.Context, username string) error {
	if err := r.RDB.Del(ctx, username).Err(); err != nil {
		return fmt.Errorf("refresh registry: %w", err)
	}
	return nil
}
