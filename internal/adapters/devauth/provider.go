package devauth

// Package devauth provides a simple, config-driven AuthProvider for local development.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// Config controls the dev auth provider behavior.
// Username and Email are required; Groups may be empty.
type Config struct {
	Username string
	Email    string
	Groups   []string
	// GroupsClaim is the userinfo claim that carries Groups.
	GroupsClaim string // default edumember_ismemberof
	// CallbackPath is where Begin sends the browser. Default /auth/callback.
	CallbackPath string
	// Now overrides the clock used for the iat claim.
	Now func() time.Time
}

// Provider implements ports.AuthProvider for local development.
// It short-circuits the OAuth flow by redirecting back to our own callback
// with locally generated state and nonce.
// Exchange ignores the code and returns the configured identity.
type Provider struct {
	cfg Config
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Username == "" {
		return nil, errors.New("dev auth: Username is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.GroupsClaim == "" {
		cfg.GroupsClaim = "edumember_ismemberof"
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "/auth/callback"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Groups = append([]string(nil), cfg.Groups...)
	return &Provider{cfg: cfg}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// The callback handler expects GET <callback>?code=...&state=...
	authURL := p.cfg.CallbackPath + "?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the code (state is validated by the caller) and returns
// the dev identity, freshly issued.
func (p *Provider) Exchange(_ context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	iat := float64(p.cfg.Now().Unix())
	groups := make([]any, 0, len(p.cfg.Groups))
	for _, g := range p.cfg.Groups {
		groups = append(groups, g)
	}
	return domainauth.Identity{
		IDToken: domainauth.Claims{
			"sub":   p.cfg.Username,
			"iat":   iat,
			"nonce": in.Nonce,
		},
		UserInfo: domainauth.Claims{
			"sub":                p.cfg.Username,
			"preferred_username": p.cfg.Username,
			"email":              p.cfg.Email,
			"name":               p.cfg.Username,
			p.cfg.GroupsClaim:    groups,
		},
	}, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	// One spare byte guarantees at least n base64 URL chars.
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
