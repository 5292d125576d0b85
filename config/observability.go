package config

import "strings"

// ObservabilityConfig groups configuration that controls metrics.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig `envPrefix:"OBSERVABILITY_METRICS_"`
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls the Prometheus endpoint and the
// optional StatsD mirror of every series.
type ObservabilityMetricsConfig struct {
	// PrometheusPath serves the Prometheus registry; empty disables it.
	PrometheusPath string `env:"PROMETHEUS_PATH" envDefault:"/metrics"`

	Enabled       bool   `env:"ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	StatsdPrefix  string `env:"STATSD_PREFIX"  envDefault:"oidcgate"`
	// StatsdTags are attached to every StatsD line, e.g. "env:prod,site:blog".
	StatsdTags map[string]string `env:"STATSD_TAGS" envSeparator:"," envKeyValSeparator:":"`
}

// Sanitize trims values and disables StatsD when no address remains.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	c.StatsdPrefix = strings.TrimSpace(c.StatsdPrefix)
	c.PrometheusPath = strings.TrimSpace(c.PrometheusPath)
	if c.PrometheusPath != "" && !strings.HasPrefix(c.PrometheusPath, "/") {
		c.PrometheusPath = "/" + c.PrometheusPath
	}
}

// IsEnabled returns true when StatsD emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}
