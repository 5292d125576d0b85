// Package config declares the environment-driven settings for oidc-gate.
// Each concern lives in its own file and is parsed by caarlos0/env.
package config

import (
	"os"
	"strings"
)

// AppConfig is the root of the configuration tree.
type AppConfig struct {
	// IsDev enables debug logging, the dev login form and dev seeding.
	// NODE_ENV=development or APP_ENV=dev turn it on as well.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth   AuthConfig
	Access AccessConfig
	HTTP   HTTPConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	Observability ObservabilityConfig
}

// Sanitize normalizes values after parsing. Call it before Validate.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.Access.Sanitize()
	c.Postgres.Sanitize()
	c.Observability.Sanitize()
	if !c.IsDev {
		c.IsDev = devEnvironment()
	}
}

func devEnvironment() bool {
	for _, key := range []string{"NODE_ENV", "APP_ENV"} {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "dev", "development", "local":
			return true
		}
	}
	return false
}
