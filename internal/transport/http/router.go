package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/nikpetrovv/blog_service/internal/handlers"
	"github.com/nikpetrovv/blog_service/internal/middleware"
	"github.com/nikpetrovv/blog_service/internal/service"
)

type Deps struct {
	Sessions    *service.SessionService
	AuthHandler *handlers.AuthHandler
	PostHandler *handlers.PostHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/signup", d.AuthHandler.Signup)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/logout", d.AuthHandler.Logout)
	v1.POST("/logout_all", d.AuthHandler.LogoutAll)

	authed := v1.Group("", middleware.RequireAuth(d.Sessions))
	authed.GET("/users/me", d.AuthHandler.Me)
	authed.PATCH("/users/me", d.AuthHandler.EditProfile)

	posts := v1.Group("/posts")
	posts.GET("", d.PostHandler.List)
	posts.GET("/search", d.PostHandler.Search)
	posts.GET("/:id", d.PostHandler.Detail)
	posts.POST("", d.PostHandler.Create, middleware.RequireAuth(d.Sessions))
}
