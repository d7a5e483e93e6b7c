package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"

	AccessTTL  = 30 * time.Minute
	RefreshTTL = 10 * time.Hour
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrScopeMismatch  = errors.New("invalid scope for token")
)

type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Codec mints and verifies signed, expiring, scoped tokens with a single
// process-wide HS256 secret.
type Codec struct {
	Secret []byte
}

func NewCodec(secret []byte) *Codec {
	return &Codec{Secret: secret}
}

func (c *Codec) mint(username, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *Codec) MintAccess(username string) (string, error) {
	return c.mint(username, ScopeAccess, AccessTTL)
}

func (c *Codec) MintRefresh(username string) (string, error) {
	return c.mint(username, ScopeRefresh, RefreshTTL)
}

// Verify parses and checks the signature and expiry of raw, then checks that
// the payload scope matches expectedScope. The three failure kinds are
// distinct sentinels so the caller can tell an expired token (client should
// refresh) from a malformed or wrong-scope one (reject outright).
func (c *Codec) Verify(raw, expectedScope string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return c.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !tkn.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Scope != expectedScope {
		return nil, ErrScopeMismatch
	}
	return &claims, nil
}

// Rotate verifies old under expectedScope and mints a fresh token of the same
// scope for the same subject. The new token always gets a new id.
func (c *Codec) Rotate(old, expectedScope string) (string, error) {
	claims, err := c.Verify(old, expectedScope)
	if err != nil {
		return "", err
	}
	switch expectedScope {
	case ScopeRefresh:
		return c.MintRefresh(claims.Subject)
	default:
		return c.MintAccess(claims.Subject)
	}
}
