package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/adapters/cookiesession"
	redisadapter "github.com/target/oidc-gate/internal/adapters/redis"
	"github.com/target/oidc-gate/internal/data"
	"github.com/target/oidc-gate/internal/service"
)

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Posts     *data.PostRepo
	Comments  *data.CommentRepo
	Users     *data.NativeUserRepo
	Internals *data.InternalsRepo
	Sessions  *redisadapter.SessionStore
	Native    *cookiesession.Store
}

// buildRepositories builds the adapters backing service ports; no business rules here.
func buildRepositories(cfg *config.AppConfig, db *sql.DB, client redis.UniversalClient, logger *slog.Logger) (*serviceRepositories, error) {
	native, err := buildNativeSessions(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &serviceRepositories{
		Posts:     data.NewPostRepo(db),
		Comments:  data.NewCommentRepo(db),
		Users:     data.NewNativeUserRepo(db),
		Internals: data.NewInternalsRepo(db),
		Sessions: redisadapter.NewSessionStore(client, redisadapter.SessionStoreOptions{
			Prefix: cfg.Redis.SessionPrefix,
			TTL:    cfg.Access.SessionLength,
		}),
		Native: native,
	}, nil
}

// buildNativeSessions creates the signed cookie store for native logins.
func buildNativeSessions(cfg *config.AppConfig, logger *slog.Logger) (*cookiesession.Store, error) {
	hashKey, err := resolveKey("APP_NATIVE_COOKIE_KEY", cfg.HTTP.NativeCookieKey, logger)
	if err != nil {
		return nil, err
	}
	var blockKey []byte
	if cfg.HTTP.NativeCookieBlockKey != "" {
		blockKey = DeriveKey(cfg.HTTP.NativeCookieBlockKey)
	}
	store, err := cookiesession.New(cookiesession.Options{
		Domain:   service.CookieDomain(cfg.HTTP.CookieDomain, cfg.HTTP.BaseURL),
		Secure:   secureCookies(cfg.HTTP.BaseURL),
		HashKey:  hashKey,
		BlockKey: blockKey,
	})
	if err != nil {
		return nil, fmt.Errorf("native session store: %w", err)
	}
	return store, nil
}

// sessionCookie describes the OIDC session id cookie.
func sessionCookie(cfg *config.AppConfig) service.SessionCookie {
	return service.SessionCookie{
		Name:   cfg.HTTP.SessionCookieName,
		Domain: service.CookieDomain(cfg.HTTP.CookieDomain, cfg.HTTP.BaseURL),
		Secure: secureCookies(cfg.HTTP.BaseURL),
		MaxAge: cfg.Access.SessionLength,
	}
}

// secureCookies marks cookies Secure whenever the public site is served over https.
func secureCookies(baseURL string) bool {
	return strings.HasPrefix(strings.ToLower(baseURL), "https://")
}
