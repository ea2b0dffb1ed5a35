package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/marketplace/config"
)

const testSecret = "config-test-secret-at-least-32-chars"

// clearEnv blanks keys without defaults so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "MONGO_URI", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "RESEND_API_KEY", "RESEND_FROM"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "postgres" || cfg.TokenTTL != 7*24*time.Hour || cfg.BcryptCost != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.PruneSchedule != "@hourly" {
		t.Errorf("prune schedule = %q", cfg.PruneSchedule)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.SlogLevel())
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short", "STORE_DRIVER": "memory"}},
		{"postgres without url", map[string]string{"JWT_SECRET": testSecret}},
		{"mongo without uri", map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "mongo"}},
		{"unknown driver", map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "redis"}},
		{"bcrypt too cheap", map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "memory", "BCRYPT_COST": "2"}},
		{"production without resend", map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "memory", "ENV": "production"}},
		{"minio without keys", map[string]string{"JWT_SECRET": testSecret, "STORE_DRIVER": "memory", "MINIO_ENDPOINT": "minio:9000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := config.Load(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg := config.Config{LogLevel: level}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("%s: got %v, want %v", level, got, want)
		}
	}
}
