package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"net/http"
	"time"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	// RedirectURL is the callback the IdP returns the browser to.
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow: it redeems the code, verifies the ID token
	// and nonce, and fetches userinfo.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code        string
	State       string
	Nonce       string
	RedirectURL string
}

// SessionStore persists the per-visitor key/value session namespace.
// Values are opaque strings; callers encode structured values as JSON.
type SessionStore interface {
	// Load returns every key of the session. A missing session yields an empty map.
	Load(ctx context.Context, id string) (map[string]string, error)
	Set(ctx context.Context, id string, values map[string]string) error
	Delete(ctx context.Context, id string, keys ...string) error
	// Destroy drops the whole session.
	Destroy(ctx context.Context, id string) error
}

// NativeSessions is the login cookie of native site accounts.
type NativeSessions interface {
	// Current returns the login name carried by the request, if any.
	Current(r *http.Request) (login string, ok bool)
	Login(w http.ResponseWriter, r *http.Request, login string, ttl time.Duration) error
	Logout(w http.ResponseWriter, r *http.Request) error
}
