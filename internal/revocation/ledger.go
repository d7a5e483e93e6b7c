package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nikpetrovv/blog_service/internal/models"
	"github.com/nikpetrovv/blog_service/internal/tokens"
)

var ErrAlreadyBlocked = errors.New("token already blocked")

// cache entries only need to outlive the access token the jti came from;
// the durable table is the source of truth after that.
const cacheTTL = tokens.AccessTTL + time.Hour

// Ledger records which access token ids have been blocked. Redis is the fast
// path, the blocked_tokens table is the write-through target and the recovery
// source after a cache flush. Once blocked, always blocked.
type Ledger struct {
	RDB *redis.Client
	DB  *gorm.DB
}

func NewLedger(rdb *redis.Client, db *gorm.DB) *Ledger {
	return &Ledger{RDB: rdb, DB: db}
}

// IsBlocked checks the cache first: a positive hit is authoritative because
// revocation is monotonic. On a miss it falls through to the durable table,
// so a flushed cache cannot un-block a token.
func (l *Ledger) IsBlocked(ctx context.Context, jti string) (bool, error) {
	n, err := l.RDB.Exists(ctx, jti).Result()
	if err != nil {
		return false, fmt.Errorf("revocation cache: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var count int64
	if err := l.DB.WithContext(ctx).Model(&models.BlockedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("revocation db: %w", err)
	}
	return count > 0, nil
}

// Block writes the jti to the cache and then to the durable table. A durable
// write failure surfaces to the caller: the operation is not done until both
// layers agree, and revocation writes are never retried silently.
func (l *Ledger) Block(ctx context.Context, jti string) error {
	blocked, err := l.IsBlocked(ctx, jti)
	if err != nil {
		return err
	}
	if blocked {
		return ErrAlreadyBlocked
	}

	if err := l.RDB.Set(ctx, jti, jti, cacheTTL).Err(); err != nil {
		return fmt.Errorf("revocation cache: %w", err)
	}
	if err := l.DB.WithContext(ctx).Create(&models.BlockedToken{JTI: jti}).Error; err != nil {
		// two concurrent blocks for the same jti can both pass the check
		// above; the loser hits the unique constraint, which is still a
		// conflict, not a storage failure
		var count int64
		if cerr := l.DB.WithContext(ctx).Model(&models.BlockedToken{}).
			Where("jti = ?", jti).
			Count(&count).Error; cerr == nil && count > 0 {
			return ErrAlreadyBlocked
		}
		return fmt.Errorf("revocation db: %w", err)
	}
	return nil
}
