package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/oidc-gate/config"
)

// logLevel is shared by the default logger so dev mode can lower it after
// the config is known.
var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// ApplyLogLevel switches to debug logging in dev mode.
func ApplyLogLevel(cfg *config.AppConfig) {
	if cfg != nil && cfg.IsDev {
		logLevel.Set(slog.LevelDebug)
		return
	}
	logLevel.Set(slog.LevelInfo)
}

// LoadConfig loads configuration from environment variables, then
// sanitizes and validates it.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// StartupAttrs summarizes the effective configuration for the startup log.
// Secrets are never included.
func StartupAttrs(cfg *config.AppConfig) []any {
	if cfg == nil {
		return nil
	}
	return []any{
		"base_url", cfg.HTTP.BaseURL,
		"auth_mode", string(cfg.Auth.Mode),
		"oidc_configured", cfg.Auth.OAuth.IsConfigured(),
		"restrict_site", cfg.Access.RestrictSite,
		"native_accounts", string(cfg.Auth.NativeAccounts),
		"session_length", cfg.Access.SessionLength.String(),
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"dev", cfg.IsDev,
	}
}
