package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	_ "accpanel/docs" // swagger docs

	"accpanel/internal/auth"
	"accpanel/internal/cache"
	"accpanel/internal/config"
	"accpanel/internal/db"
	"accpanel/internal/handler"
	"accpanel/internal/middleware"
	"accpanel/internal/model"
	"accpanel/internal/repository"
	"accpanel/internal/router"
	"accpanel/internal/service"
	"accpanel/pkg/logger"
)

// @title Account Panel API
// @version 1.0
// @description Internal account-management panel with email/password authentication and role-based access.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database init")
	}

	if err := gormDB.AutoMigrate(&model.Role{}, &model.User{}); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, caching disabled")
	}

	userRepo := repository.NewUserRepository(gormDB)
	roleRepo := repository.NewRoleRepository(gormDB)

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	userService := service.NewUserService(userRepo, roleRepo, hasher, cacheClient)
	authService := service.NewAuthService(userService, hasher, jwtService, tokenStore)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = router.NewHTTPErrorHandler(log)

	router.Register(e, cfg, middleware.DefaultPolicy(), authHandler, userHandler)

	addr := ":" + cfg.ServerPort
	log.Info().Str("addr", addr).Msg("starting server")
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server start")
	}
}
