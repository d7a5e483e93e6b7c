package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nikpetrovv/blog_service/internal/hash"
	"github.com/nikpetrovv/blog_service/internal/logging"
	"github.com/nikpetrovv/blog_service/internal/models"
	"github.com/nikpetrovv/blog_service/internal/mykafka"
	"github.com/nikpetrovv/blog_service/internal/refreshreg"
	"github.com/nikpetrovv/blog_service/internal/repo"
	"github.com/nikpetrovv/blog_service/internal/revocation"
	"github.com/nikpetrovv/blog_service/internal/tokens"
)

var (
	ErrBadCredentials       = errors.New("invalid username or password")
	ErrInactiveRefreshToken = errors.New("refresh token is not active")
	ErrAlreadyLoggedOut     = errors.New("token already logged out")
)

var defaultRoles = "common_user,special_guest"

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionService orchestrates signup, login, refresh and logout on top of the
// token codec, the revocation ledger, the refresh token registry and the user
// store. Handlers only ever talk to this type.
type SessionService struct {
	Users    *repo.UserRepo
	Codec    *tokens.Codec
	Ledger   *revocation.Ledger
	Registry *refreshreg.Registry
	Producer *mykafka.Producer
}

func (s *SessionService) publish(ctx context.Context, key string, event map[string]any) {
	if s.Producer == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Producer.PublishEvent(pubCtx, "user_events", key, event); err != nil {
		logging.FromContext(ctx).Error("kafka publish error", "error", err)
	}
}

func (s *SessionService) Signup(ctx context.Context, username, email, password string) (*models.UserView, error) {
	l := logging.FromContext(ctx).With("svc", "session.signup", "username", username)

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("signup failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Roles:        defaultRoles,
		UUID:         uuid.NewString(),
		Active:       true,
	}
	if err := s.Users.CreateUser(ctx, &user); err != nil {
		l.Warn("signup failed", "error", err)
		return nil, err
	}

	s.publish(ctx, username, map[string]any{
		"type":     "user_registered",
		"username": username,
	})

	view := user.View()
	return &view, nil
}

// Login checks the password and mints an access+refresh pair. The refresh
// token is registered as active for the user before the pair is returned.
// Unknown user and wrong password produce the same error on purpose.
func (s *SessionService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "session.login", "username", username)

	user, err := s.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("login failed", "reason", "unknown user")
			return nil, ErrBadCredentials
		}
		l.Error("login failed", "error", err)
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login failed", "reason", "wrong password")
		return nil, ErrBadCredentials
	}

	pair, err := s.mintPair(ctx, user.Username)
	if err != nil {
		l.Error("login failed", "error", err)
		return nil, err
	}

	s.publish(ctx, username, map[string]any{
		"type":     "user_logged_in",
		"username": username,
	})

	return pair, nil
}

func (s *SessionService) mintPair(ctx context.Context, username string) (*TokenPair, error) {
	access, err := s.Codec.MintAccess(username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Codec.MintRefresh(username)
	if err != nil {
		return nil, err
	}
	if err := s.Registry.Register(ctx, username, refresh); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a refresh token for a fresh pair. The subject is taken
// from the verified payload, never from a cache key, so verification runs
// before the registry lookup. The old refresh token stays in the registry
// until its own expiry or an explicit RevokeAll; see DESIGN.md.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "session.refresh")

	claims, err := s.Codec.Verify(refreshToken, tokens.ScopeRefresh)
	if err != nil {
		l.Warn("refresh failed", "reason", "verify", "error", err)
		return nil, err
	}

	active, err := s.Registry.IsActive(ctx, claims.Subject, refreshToken)
	if err != nil {
		l.Error("refresh failed", "error", err)
		return nil, err
	}
	if !active {
		l.Warn("refresh failed", "reason", "token not in active set", "username", claims.Subject)
		return nil, ErrInactiveRefreshToken
	}

	newRefresh, err := s.Codec.Rotate(refreshToken, tokens.ScopeRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.Registry.Register(ctx, claims.Subject, newRefresh); err != nil {
		l.Error("refresh failed", "error", err)
		return nil, err
	}
	newAccess, err := s.Codec.MintAccess(claims.Subject)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}

// Logout blocks the access token's id in the revocation ledger. Refresh
// tokens are untouched; LogoutAll is the heavier variant.
func (s *SessionService) Logout(ctx context.Context, accessToken string) error {
	l := logging.FromContext(ctx).With("svc", "session.logout")

	claims, err := s.Codec.Verify(accessToken, tokens.ScopeAccess)
	if err != nil {
		l.Warn("logout failed", "reason", "verify", "error", err)
		return err
	}

	if err := s.Ledger.Block(ctx, claims.ID); err != nil {
		if errors.Is(err, revocation.ErrAlreadyBlocked) {
			return ErrAlreadyLoggedOut
		}
		l.Error("logout failed", "error", err)
		return err
	}

	s.publish(ctx, claims.Subject, map[string]any{
		"type":     "user_logged_out",
		"username": claims.Subject,
	})
	return nil
}

// LogoutAll blocks the current access token and clears the user's active
// refresh token set, invalidating every device at once.
func (s *SessionService) LogoutAll(ctx context.Context, accessToken string) error {
	l := logging.FromContext(ctx).With("svc", "session.logout_all")

	claims, err := s.Codec.Verify(accessToken, tokens.ScopeAccess)
	if err != nil {
		l.Warn("logout_all failed", "reason", "verify", "error", err)
		return err
	}

	if err := s.Ledger.Block(ctx, claims.ID); err != nil && !errors.Is(err, revocation.ErrAlreadyBlocked) {
		l.Error("logout_all failed", "error", err)
		return err
	}
	if err := s.Registry.RevokeAll(ctx, claims.Subject); err != nil {
		l.Error("logout_all failed", "error", err)
		return err
	}

	s.publish(ctx, claims.Subject, map[string]any{
		"type":     "user_logged_out_everywhere",
		"username": claims.Subject,
	})
	return nil
}

// CheckBlocked is the guard run before any authenticated operation: a valid
// signature is not enough once the token id is in the ledger. The verified
// claims are returned so callers do not need a second signature check.
func (s *SessionService) CheckBlocked(ctx context.Context, accessToken string) (*tokens.Claims, error) {
	claims, err := s.Codec.Verify(accessToken, tokens.ScopeAccess)
	if err != nil {
		return nil, err
	}
	blocked, err := s.Ledger.IsBlocked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrAlreadyLoggedOut
	}
	return claims, nil
}

func (s *SessionService) GetCurrentUser(ctx context.Context, accessToken string) (*models.UserView, error) {
	claims, err := s.Codec.Verify(accessToken, tokens.ScopeAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.Users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	view := user.View()
	return &view, nil
}

type ProfileResult struct {
	User        models.UserView `json:"user"`
	AccessToken string          `json:"access_token"`
}

// EditProfile updates username and/or email and re-mints the token pair,
// since the old tokens reference the old username. The superseded tokens are
// not revoked here and stay valid until expiry; see DESIGN.md.
func (s *SessionService) EditProfile(ctx context.Context, accessToken, newUsername, newEmail string) (*ProfileResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.edit_profile")

	claims, err := s.Codec.Verify(accessToken, tokens.ScopeAccess)
	if err != nil {
		l.Warn("edit profile failed", "reason", "verify", "error", err)
		return nil, err
	}

	user, err := s.Users.UpdateProfile(ctx, claims.Subject, newUsername, newEmail)
	if err != nil {
		l.Warn("edit profile failed", "error", err)
		return nil, err
	}

	pair, err := s.mintPair(ctx, user.Username)
	if err != nil {
		l.Error("edit profile failed", "error", err)
		return nil, err
	}

	return &ProfileResult{User: user.View(), AccessToken: pair.AccessToken}, nil
}
