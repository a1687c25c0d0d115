package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"accpanel/internal/auth"
	"accpanel/internal/config"
	"accpanel/internal/handler"
	"accpanel/internal/middleware"
)

// Register wires routes and middleware. The policy gates every request before
// it reaches a handler: the JWT middleware parses session tokens (skipped on
// public paths), then Enforce authorises against the first matching rule.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	policy *middleware.Policy,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
) {
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(echojwt.WithConfig(echojwt.Config{
		Skipper:    policy.Skip,
		SigningKey: []byte(cfg.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.Claims)
		},
	}))
	e.Use(policy.Enforce())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	authAPI := api.Group("/auth")
	authAPI.POST("/login", authHandler.Login)
	authAPI.POST("/refresh", authHandler.Refresh)
	authAPI.POST("/logout", authHandler.Logout)

	admin := api.Group("/admin")
	admin.GET("/users", userHandler.List)
	admin.POST("/users", userHandler.Create)
	admin.GET("/users/:id", userHandler.Get)
	admin.PUT("/users/:id", userHandler.Update)
	admin.DELETE("/users/:id", userHandler.Delete)
	admin.GET("/roles", userHandler.ListRoles)

	user := api.Group("/user")
	user.GET("/me", userHandler.Me)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
