package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nikpetrovv/blog_service/internal/logging"
	"github.com/nikpetrovv/blog_service/internal/service"
)

// BearerToken pulls the raw token out of the Authorization header.
func BearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// RequireAuth verifies the access token and checks the revocation ledger
// before the handler runs. Every failure collapses to one generic 401 here:
// the precise reason (expired vs malformed vs scope vs blocked) only goes to
// the log, never to the client.
func RequireAuth(sessions *service.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			ctx := c.Request().Context()
			claims, err := sessions.CheckBlocked(ctx, token)
			if err != nil {
				logging.FromContext(ctx).Warn("auth rejected", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			c.Set("username", claims.Subject)
			c.Set("accessToken", token)
			return next(c)
		}
	}
}
