package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/observability/metrics"
	"github.com/target/oidc-gate/internal/observability/statsd"
	"github.com/target/oidc-gate/internal/ports"
	"github.com/target/oidc-gate/internal/service"
)

const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Gate          *service.GateOptions
	Scope         *service.RequestScope
	Policy        *service.RedirectPolicy
	Access        *service.AccessService
	Content       *service.ContentService
	Auth          *service.AuthService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Registry      *prometheus.Registry
	Metrics       *metrics.Metrics
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Close releases the StatsD connection.
func (o ObservabilityContainer) Close() error {
	return o.MetricsSink.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// Provider overrides the identity provider built from Config.
	Provider ports.AuthProvider
	Logger   *slog.Logger
}

// buildObservability configures the Prometheus registry and the optional StatsD sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.StatsdPrefix,
			Logger:     obsLogger,
			GlobalTags: cfg.Metrics.StatsdTags,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	var m *metrics.Metrics
	if metricsSink != nil {
		m = metrics.New(registry, metricsSink)
	} else {
		m = metrics.New(registry, nil)
	}

	return ObservabilityContainer{
		Registry:      registry,
		Metrics:       m,
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// NewServices wires adapters and services for the HTTP runtime.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repos, err := buildRepositories(cfg, deps.DB, deps.RedisClient, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	obs := buildObservability(logger, cfg.Observability)
	gate := service.GateOptionsFromConfig(cfg)

	provider := deps.Provider
	if provider == nil {
		provider, err = BuildAuthProvider(AuthConfig{Auth: cfg.Auth, CallbackURL: gate.CallbackURL(), Logger: logger})
		if err != nil {
			return ServiceContainer{}, err
		}
	}

	policy := service.NewRedirectPolicy(service.RedirectPolicyOptions{
		Gate:     gate,
		Verifier: service.NewVerifier(repos.Internals, verifierKey(cfg.HTTP.VerifierKey)),
		Logger:   logger,
	})
	accessSvc := service.NewAccessService(service.AccessServiceOptions{
		Groups:  repos.Posts,
		Metrics: obs.Metrics,
		Logger:  logger,
	})

	return ServiceContainer{
		Gate: gate,
		Scope: service.NewRequestScope(service.RequestScopeOptions{
			Gate: gate,
			Stores: service.RequestStores{
				Sessions: repos.Sessions,
				Native:   repos.Native,
				Users:    repos.Users,
			},
			Cookie: sessionCookie(cfg),
			Logger: logger,
		}),
		Policy: policy,
		Access: accessSvc,
		Content: service.NewContentService(service.ContentServiceOptions{
			Repos:  service.ContentRepos{Posts: repos.Posts, Comments: repos.Comments, Groups: repos.Posts},
			Access: accessSvc,
			Policy: policy,
			Logger: logger,
		}),
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Provider: provider,
			Policy:   policy,
			Users:    repos.Users,
			Logger:   logger,
		}),
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains dependencies for running the service.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// RunServicesWithShutdown starts the HTTP server and blocks until a
// shutdown signal arrives or the server fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config with AppConfig is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	server, err := StartHTTPServer(&HTTPServerConfig{
		Config:      cfg.Config,
		Services:    cfg.Services,
		DB:          cfg.DB,
		RedisClient: cfg.RedisClient,
		Logger:      logger,
		Errors:      errCh,
	})
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Error("http server error", "error", runErr)
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownWaitTimeout)
	defer stop()
	if err := ShutdownHTTPServer(ShutdownConfig{Context: shutdownCtx, Server: server, Logger: logger}); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := cfg.Services.Observability.Close(); err != nil {
		logger.Warn("close statsd client", "error", err)
	}
	return runErr
}
