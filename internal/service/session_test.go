package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nikpetrovv/blog_service/internal/models"
	"github.com/nikpetrovv/blog_service/internal/refreshreg"
	"github.com/nikpetrovv/blog_service/internal/repo"
	"github.com/nikpetrovv/blog_service/internal/revocation"
	"github.com/nikpetrovv/blog_service/internal/tokens"
)

type sessionEnv struct {
	Sessions *SessionService
	Registry *refreshreg.Registry
	DB       *gorm.DB
	Redis    *miniredis.Miniredis
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	blocked := redis.NewClient(&redis.Options{Addr: mr.Addr(), DB: 2})
	refresh := redis.NewClient(&redis.Options{Addr: mr.Addr(), DB: 3})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.BlockedToken{}))

	t.Cleanup(func() {
		_ = blocked.Close()
		_ = refresh.Close()
		mr.Close()
	})

	registry := refreshreg.NewRegistry(refresh)
	sessions := &SessionService{
		Users:    repo.NewUserRepo(db),
		Codec:    tokens.NewCodec([]byte("test-jwt-secret")),
		Ledger:   revocation.NewLedger(blocked, db),
		Registry: registry,
	}

	return &sessionEnv{Sessions: sessions, Registry: registry, DB: db, Redis: mr}
}

func TestSignup(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	view, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, "a@x.com", view.Email)
	assert.Equal(t, []string{"common_user", "special_guest"}, view.Roles)
	assert.NotEmpty(t, view.UUID)
	assert.True(t, view.Active)

	// the password hash never leaves the store layer
	var stored models.User
	require.NoError(t, env.DB.Where("username = ?", "alice").First(&stored).Error)
	assert.NotEqual(t, "pw1", stored.PasswordHash)
}

func TestSignup_Duplicates(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = env.Sessions.Signup(ctx, "alice", "other@x.com", "pw1")
	assert.ErrorIs(t, err, repo.ErrDuplicateUsername)

	_, err = env.Sessions.Signup(ctx, "bob", "a@x.com", "pw1")
	assert.ErrorIs(t, err, repo.ErrDuplicateEmail)

	// failed signups must not leave rows behind
	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	active, err := env.Registry.IsActive(ctx, "alice", pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	// unknown user and wrong password are indistinguishable to the caller
	_, err = env.Sessions.Login(ctx, "nobody", "pw1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = env.Sessions.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	newPair, err := env.Sessions.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, newPair.AccessToken)
	require.NotEmpty(t, newPair.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	active, err := env.Registry.IsActive(ctx, "alice", newPair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, active)

	// current policy: the rotated-out token stays exchangeable until expiry
	active, err = env.Registry.IsActive(ctx, "alice", pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestRefresh_Unregistered(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)

	// valid signature and scope, but never registered
	stray, err := env.Sessions.Codec.MintRefresh("alice")
	require.NoError(t, err)

	_, err = env.Sessions.Refresh(ctx, stray)
	assert.ErrorIs(t, err, ErrInactiveRefreshToken)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = env.Sessions.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, tokens.ErrScopeMismatch)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	claims, err := env.Sessions.CheckBlocked(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	require.NoError(t, env.Sessions.Logout(ctx, pair.AccessToken))

	_, err = env.Sessions.CheckBlocked(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrAlreadyLoggedOut)
	assert.ErrorIs(t, env.Sessions.Logout(ctx, pair.AccessToken), ErrAlreadyLoggedOut)

	// logout does not touch the refresh token
	active, err := env.Registry.IsActive(ctx, "alice", pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLogoutAll(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair1, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	pair2, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	require.NoError(t, env.Sessions.LogoutAll(ctx, pair1.AccessToken))

	for _, refresh := range []string{pair1.RefreshToken, pair2.RefreshToken} {
		active, err := env.Registry.IsActive(ctx, "alice", refresh)
		require.NoError(t, err)
		assert.False(t, active)
	}
	_, err = env.Sessions.CheckBlocked(ctx, pair1.AccessToken)
	assert.ErrorIs(t, err, ErrAlreadyLoggedOut)
}

func TestGetCurrentUser(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	view, err := env.Sessions.GetCurrentUser(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", view.Username)
	assert.Equal(t, []string{"common_user", "special_guest"}, view.Roles)

	_, err = env.Sessions.GetCurrentUser(ctx, "garbage")
	assert.ErrorIs(t, err, tokens.ErrTokenMalformed)
}

func TestGetCurrentUser_RowGone(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	require.NoError(t, env.DB.Where("username = ?", "alice").Delete(&models.User{}).Error)

	_, err = env.Sessions.GetCurrentUser(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, repo.ErrUserNotFound)
}

func TestEditProfile(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	result, err := env.Sessions.EditProfile(ctx, pair.AccessToken, "alice2", "a2@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice2", result.User.Username)
	assert.Equal(t, "a2@x.com", result.User.Email)
	require.NotEmpty(t, result.AccessToken)

	// the fresh token carries the new username
	view, err := env.Sessions.GetCurrentUser(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice2", view.Username)

	// flagged policy: the old access token stays valid until expiry, but now
	// points at a username that no longer resolves
	_, err = env.Sessions.GetCurrentUser(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, repo.ErrUserNotFound)
}

func TestEditProfile_DuplicateUsername(t *testing.T) {
	t.Parallel()

	env := newSessionEnv(t)
	ctx := context.Background()

	_, err := env.Sessions.Signup(ctx, "alice", "a@x.com", "pw1")
	require.NoError(t, err)
	_, err = env.Sessions.Signup(ctx, "bob", "b@x.com", "pw2")
	require.NoError(t, err)

	pair, err := env.Sessions.Login(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = env.Sessions.EditProfile(ctx, pair.AccessToken, "bob", "")
	assert.ErrorIs(t, err, repo.ErrDuplicateUsername)
}
