package config

import (
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}))
	cfg.Sanitize()

	assert.Equal(t, AuthModeOAuth, cfg.Auth.Mode)
	assert.Equal(t, "client_secret_post", cfg.Auth.OAuth.AuthMethod)
	assert.Equal(t, "openid email profile edumember", cfg.Auth.OAuth.Scopes)
	assert.Equal(t, NativeModeNo, cfg.Auth.NativeAccounts)
	assert.Equal(t, map[string]string{
		"username":    "preferred_username",
		"email":       "email",
		"full_name":   "name",
		"given_name":  "given_name",
		"family_name": "family_name",
		"groups":      "edumember_ismemberof",
	}, cfg.Auth.Claims.Map())

	assert.Equal(t, []string{"_everyone_"}, cfg.Access.RestrictSite)
	assert.Equal(t, ActionSetting, cfg.Access.LoginAction)
	assert.Equal(t, ActionSmart, cfg.Access.LogoutAction)
	assert.Equal(t, 86400*time.Second, cfg.Access.SessionLength)
	assert.Equal(t, "/admin", cfg.HTTP.AdminPath)
	assert.Equal(t, "/login", cfg.HTTP.NativeLoginPath)

	assert.NoError(t, cfg.Validate())
}

func TestAppConfig_EnvOverrides(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"USE_OIDC_FOR_NATIVE_USERS": "Optional",
		"AVAILABLE_GROUPS":          "staff, faculty",
		"RESTRICT_SITE":             "staff,faculty",
		"APP_BASE_URL":              "https://www.example.edu/news/",
		"APP_ADMIN_PATH":            "wp-admin/",
		"SESSION_LENGTH":            "1h",
	}}))
	cfg.Sanitize()

	assert.Equal(t, NativeModeOptional, cfg.Auth.NativeAccounts)
	assert.Equal(t, []string{"staff", "faculty"}, cfg.Auth.AvailableGroups)
	assert.Equal(t, "https://www.example.edu/news", cfg.HTTP.BaseURL)
	assert.Equal(t, "/wp-admin", cfg.HTTP.AdminPath)
	assert.Equal(t, time.Hour, cfg.Access.SessionLength)
	assert.NoError(t, cfg.Validate())
}

func TestAppConfig_InvalidNativeMode(t *testing.T) {
	var cfg AppConfig
	err := env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"USE_OIDC_FOR_NATIVE_USERS": "sometimes",
	}})
	require.Error(t, err)
}

func TestAppConfig_ValidateAggregates(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"OIDC_SCOPES":       "email profile",
		"RESTRICT_SITE":     "_everyone_,staff",
		"LOGIN_ACTION":      "smart",
		"LOGOUT_RETURN_URL": "http://evil.example.com/",
		"AUTH_MODE":         "mock",
	}}))
	cfg.Sanitize()

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"OIDC_SCOPES", "RESTRICT_SITE", "LOGIN_ACTION", "LOGOUT_RETURN_URL", "AUTH_MODE"} {
		assert.True(t, strings.Contains(msg, want), "missing %s in %s", want, msg)
	}
}

func TestValidateScopes(t *testing.T) {
	assert.NoError(t, validateScopes("openid email"))
	assert.Error(t, validateScopes("email"))
	assert.Error(t, validateScopes(`openid bad"quote`))
	assert.Error(t, validateScopes(`openid back\slash`))
}

func TestValidateReturnURL(t *testing.T) {
	assert.NoError(t, validateReturnURL(""))
	assert.NoError(t, validateReturnURL("/members"))
	assert.NoError(t, validateReturnURL("https://www.example.edu/"))
	assert.Error(t, validateReturnURL("//evil.example.com"))
	assert.Error(t, validateReturnURL("http://www.example.edu/"))
}

func TestObservabilityConfig_StatsdTags(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{
		"OBSERVABILITY_METRICS_ENABLED":         "true",
		"OBSERVABILITY_METRICS_STATSD_TAGS":     "env:prod,site:blog",
		"OBSERVABILITY_METRICS_PROMETHEUS_PATH": "internal/metrics",
	}}))
	cfg.Sanitize()

	m := cfg.Observability.Metrics
	assert.True(t, m.IsEnabled())
	assert.Equal(t, "oidcgate", m.StatsdPrefix)
	assert.Equal(t, map[string]string{"env": "prod", "site": "blog"}, m.StatsdTags)
	assert.Equal(t, "/internal/metrics", m.PrometheusPath)
}

func TestDBConfig_PoolSettings(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}}))
	cfg.Sanitize()
	assert.Equal(t, 20, cfg.Postgres.MaxOpenConns)
	assert.Equal(t, 5, cfg.Postgres.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.ConnMaxLifetime)

	db := DBConfig{MaxOpenConns: 0, MaxIdleConns: 50, ConnMaxLifetime: -time.Second}
	db.Sanitize()
	assert.Equal(t, DBConfig{MaxOpenConns: 20, MaxIdleConns: 20}, db)
}

func TestDevEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	t.Setenv("APP_ENV", "")
	assert.False(t, devEnvironment())

	t.Setenv("APP_ENV", " Development ")
	assert.True(t, devEnvironment())
}
