// Seeds the role table and a bootstrap administrator account. Roles are
// administered out of band; the running service only reads them.
package main

import (
	"context"
	"errors"
	"os"

	"accpanel/internal/auth"
	"accpanel/internal/config"
	"accpanel/internal/db"
	apperrors "accpanel/internal/errors"
	"accpanel/internal/model"
	"accpanel/internal/repository"
	"accpanel/internal/service"
	"accpanel/pkg/logger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true})

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database init")
	}
	if err := gormDB.AutoMigrate(&model.Role{}, &model.User{}); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate")
	}

	userRepo := repository.NewUserRepository(gormDB)
	roleRepo := repository.NewRoleRepository(gormDB)

	for _, name := range []string{auth.AuthorityAdmin, auth.AuthorityUser} {
		if _, err := roleRepo.FindByName(ctx, name); err == nil {
			log.Info().Str("role", name).Msg("role already present")
			continue
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Fatal().Err(err).Str("role", name).Msg("look up role")
		}
		if err := roleRepo.Save(ctx, &model.Role{Name: name}); err != nil {
			log.Fatal().Err(err).Str("role", name).Msg("create role")
		}
		log.Info().Str("role", name).Msg("role created")
	}

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	userService := service.NewUserService(userRepo, roleRepo, hasher, nil)

	email := envOr("ADMIN_EMAIL", "admin@example.com")
	password := envOr("ADMIN_PASSWORD", "admin123")

	admin, err := userService.Create(ctx, service.CreateUserInput{
		Username:  envOr("ADMIN_USERNAME", "admin"),
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Age:       0,
	}, service.RolesByName(auth.AuthorityAdmin))
	if err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			log.Info().Str("email", email).Msg("admin account already present")
			return
		}
		log.Fatal().Err(err).Msg("create admin account")
	}

	log.Info().Uint("id", admin.ID).Str("email", admin.Email).Msg("admin account created")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
