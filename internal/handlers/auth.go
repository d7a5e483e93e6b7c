package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nikpetrovv/blog_service/internal/middleware"
	"github.com/nikpetrovv/blog_service/internal/repo"
	"github.com/nikpetrovv/blog_service/internal/service"
	"github.com/nikpetrovv/blog_service/internal/tokens"
)

type AuthHandler struct {
	Sessions *service.SessionService
}

// httpError maps service sentinels to status codes. Every member of the
// token-verification family becomes the same generic 401 so the response
// never reveals why a token was refused; the precise cause is already in the
// service log.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, repo.ErrDuplicateUsername):
		return echo.NewHTTPError(http.StatusConflict, "account with such username already exists")
	case errors.Is(err, repo.ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusConflict, "account with such email already exists")
	case errors.Is(err, repo.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrAlreadyLoggedOut):
		return echo.NewHTTPError(http.StatusConflict, "already logged out")
	case errors.Is(err, service.ErrBadCredentials),
		errors.Is(err, service.ErrInactiveRefreshToken),
		errors.Is(err, tokens.ErrTokenExpired),
		errors.Is(err, tokens.ErrTokenMalformed),
		errors.Is(err, tokens.ErrScopeMismatch):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, email and password are required")
	}

	view, err := h.Sessions.Signup(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.Sessions.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.Sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := middleware.BearerToken(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Sessions.Logout(c.Request().Context(), token); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	token, ok := middleware.BearerToken(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Sessions.LogoutAll(c.Request().Context(), token); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out everywhere"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	token, _ := c.Get("accessToken").(string)

	view, err := h.Sessions.GetCurrentUser(c.Request().Context(), token)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *AuthHandler) EditProfile(c echo.Context) error {
	token, _ := c.Get("accessToken").(string)

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.Sessions.EditProfile(c.Request().Context(), token, req.Username, req.Email)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}
