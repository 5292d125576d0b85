package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/adapters/devauth"
	"github.com/target/oidc-gate/internal/adapters/oidc"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// AuthConfig contains configuration for the identity provider.
type AuthConfig struct {
	Auth config.AuthConfig
	// CallbackURL is the absolute redirect URI registered with the IdP.
	CallbackURL string
	Logger      *slog.Logger
}

// errNotConfigured is returned by the placeholder provider used while the
// OIDC client options are incomplete.
var errNotConfigured = errors.New("identity provider is not configured")

// BuildAuthProvider creates the identity provider for the configured auth
// mode. An incomplete OIDC configuration is not an error: logins then fail
// with a configuration page naming the missing option.
//
//nolint:ireturn // the provider implementation is picked at runtime.
func BuildAuthProvider(cfg AuthConfig) (ports.AuthProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			Username:     cfg.Auth.DevAuth.Username,
			Email:        cfg.Auth.DevAuth.Email,
			Groups:       cfg.Auth.DevAuth.Groups,
			GroupsClaim:  cfg.Auth.Claims.Groups,
			CallbackPath: cfg.Auth.OAuth.CallbackPath,
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.Warn("dev auth enabled; every login becomes the configured dev user",
				"username", cfg.Auth.DevAuth.Username)
		}
		return prov, nil

	case config.AuthModeOAuth:
		oauth := cfg.Auth.OAuth
		if !oauth.IsConfigured() {
			if cfg.Logger != nil {
				cfg.Logger.Warn("OIDC client options incomplete; logins are disabled",
					"provider_url_empty", oauth.ProviderURL == "",
					"client_id_empty", oauth.ClientID == "",
					"client_secret_empty", oauth.ClientSecret == "",
				)
			}
			return unconfiguredProvider{}, nil
		}
		pc := oidc.ProviderConfig{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scope:        oauth.Scopes,
			DiscoveryURL: oauth.ProviderURL,
			AuthMethod:   oauth.AuthMethod,
		}
		return newLazyProvider(func(ctx context.Context) (ports.AuthProvider, error) {
			prov, err := oidc.NewProvider(ctx, pc)
			if err != nil {
				return nil, err
			}
			return prov, nil
		}, cfg.Logger), nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

type unconfiguredProvider struct{}

func (unconfiguredProvider) Begin(context.Context, ports.BeginInput) (string, string, string, error) {
	return "", "", "", errNotConfigured
}

func (unconfiguredProvider) Exchange(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
	return domainauth.Identity{}, errNotConfigured
}

// lazyProvider defers OIDC discovery to the first login so the site keeps
// serving public pages while the IdP is unreachable. A failed discovery is
// retried on the next call.
type lazyProvider struct {
	build  func(ctx context.Context) (ports.AuthProvider, error)
	logger *slog.Logger

	mu   sync.Mutex
	prov ports.AuthProvider
}

func newLazyProvider(build func(ctx context.Context) (ports.AuthProvider, error), logger *slog.Logger) *lazyProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &lazyProvider{build: build, logger: logger}
}

//nolint:ireturn // wraps whichever provider build returns.
func (l *lazyProvider) get(ctx context.Context) (ports.AuthProvider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prov != nil {
		return l.prov, nil
	}
	// The provider outlives this request.
	prov, err := l.build(context.WithoutCancel(ctx))
	if err != nil {
		l.logger.ErrorContext(ctx, "oidc discovery failed", "error", err)
		return nil, err
	}
	l.prov = prov
	return prov, nil
}

func (l *lazyProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	prov, err := l.get(ctx)
	if err != nil {
		return "", "", "", err
	}
	return prov.Begin(ctx, in)
}

func (l *lazyProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	prov, err := l.get(ctx)
	if err != nil {
		return domainauth.Identity{}, err
	}
	return prov.Exchange(ctx, in)
}
