package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env         string `env:"ENV"          envDefault:"local" validate:"required,oneof=local staging production"`
	Port        string `env:"PORT"         envDefault:"8080"  validate:"required"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"  validate:"oneof=debug info warn error"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres" validate:"oneof=postgres mongo memory"`
	DatabaseURL string `env:"DATABASE_URL"                       validate:"required_if=StoreDriver postgres"`
	MongoURI    string `env:"MONGO_URI"                          validate:"required_if=StoreDriver mongo"`
	MongoDB     string `env:"MONGO_DB"     envDefault:"marketplace"`

	JWTSecret     string        `env:"JWT_SECRET,required" validate:"required,min=32"`
	TokenTTL      time.Duration `env:"TOKEN_TTL"      envDefault:"168h"    validate:"min=1m"`
	BcryptCost    int           `env:"BCRYPT_COST"    envDefault:"10"      validate:"min=4,max=14"`
	PruneSchedule string        `env:"PRUNE_SCHEDULE" envDefault:"@hourly" validate:"required"`

	// EmbeddedPruner runs the pruner inside the API process. Disable it when
	// cmd/scheduler runs as its own deployment.
	EmbeddedPruner bool `env:"EMBEDDED_PRUNER" envDefault:"true"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	// Images fall back to process memory when MINIO_ENDPOINT is unset.
	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" validate:"required_with=MinIOEndpoint"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" validate:"required_with=MinIOEndpoint"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"listing-images"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOPublicURL string `env:"MINIO_PUBLIC_URL" validate:"omitempty,url"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL"  envDefault:"http://localhost:8080" validate:"url"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
