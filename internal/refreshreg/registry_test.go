package refreshreg

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return NewRegistry(rdb)
}

func TestRegisterAndIsActive(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	active, err := reg.IsActive(ctx, "alice", "token-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, reg.Register(ctx, "alice", "token-1"))
	require.NoError(t, reg.Register(ctx, "alice", "token-2"))

	active, err = reg.IsActive(ctx, "alice", "token-1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = reg.IsActive(ctx, "alice", "token-2")
	require.NoError(t, err)
	assert.True(t, active)

	// another user's set is separate
	active, err = reg.IsActive(ctx, "bob", "token-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRevokeAll(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "alice", "token-1"))
	require.NoError(t, reg.Register(ctx, "alice", "token-2"))
	require.NoError(t, reg.RevokeAll(ctx, "alice"))

	for _, token := range []string{"token-1", "token-2"} {
		active, err := reg.IsActive(ctx, "alice", token)
		require.NoError(t, err)
		assert.False(t, active)
	}
}

func TestRegister_ConcurrentSameUser(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = reg.Register(ctx, "alice", fmt.Sprintf("token-%d", i))
		}(i)
	}
	wg.Wait()

	// RPUSH is atomic, so no registration is lost
	for i := 0; i < n; i++ {
		active, err := reg.IsActive(ctx, "alice", fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
		assert.True(t, active)
	}
}
