package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string `env:"SERVER_PORT, default=8080"`
	LogLevel   string `env:"LOG_LEVEL, default=info"`
	LogPretty  bool   `env:"LOG_PRETTY, default=false"`

	MySQLDSN string `env:"MYSQL_DSN, default=user:password@tcp(localhost:3306)/accpanel?charset=utf8mb4&parseTime=True&loc=Local"`

	RedisAddr string `env:"REDIS_ADDR, default=localhost:6379"`
	RedisDB   int    `env:"REDIS_DB, default=0"`
	RedisPass string `env:"REDIS_PASSWORD"`

	JWTSecret  string `env:"JWT_SECRET, default=change-me"`
	BcryptCost int    `env:"BCRYPT_COST, default=10"`
}

// Load builds Config from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
