package revocation

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nikpetrovv/blog_service/internal/models"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.BlockedToken{}))

	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return NewLedger(rdb, db), mr
}

func TestBlock_ThenIsBlocked(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	jti := uuid.NewString()

	blocked, err := ledger.IsBlocked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, ledger.Block(ctx, jti))

	blocked, err = ledger.IsBlocked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestBlock_SecondCallFails(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	jti := uuid.NewString()

	require.NoError(t, ledger.Block(ctx, jti))
	assert.ErrorIs(t, ledger.Block(ctx, jti), ErrAlreadyBlocked)
}

func TestBlock_ConcurrentSameJTI(t *testing.T) {
	t.Parallel()

	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	jti := uuid.NewString()

	const n = 10
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Block(ctx, jti)
		}()
	}
	wg.Wait()
	close(errs)

	// exactly one winner; every loser gets the conflict sentinel, never a
	// generic storage error
	var won int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyBlocked)
	}
	assert.Equal(t, 1, won)
}

func TestIsBlocked_SurvivesCacheFlush(t *testing.T) {
	t.Parallel()

	ledger, mr := newTestLedger(t)
	ctx := context.Background()
	jti := uuid.NewString()

	require.NoError(t, ledger.Block(ctx, jti))

	// simulate a full cache loss; the durable table is the source of truth
	mr.FlushAll()

	blocked, err := ledger.IsBlocked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, blocked)

	// and the second block attempt still conflicts
	assert.ErrorIs(t, ledger.Block(ctx, jti), ErrAlreadyBlocked)
}
