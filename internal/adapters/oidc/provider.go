// Package oidc provides the OIDC/OAuth2 authentication adapter for oidc-gate.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// Provider implements the AuthProvider interface using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	// DiscoveryURL is the issuer URL, with or without the well-known suffix.
	DiscoveryURL string
	// AuthMethod is client_secret_post (default) or client_secret_basic.
	AuthMethod string
	HTTPClient *http.Client // Optional, defaults to a pooled cleanhttp client
}

// NewProvider creates a new OIDC provider. It fetches the discovery
// document once, so the IdP must be reachable.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = 30 * time.Second
	}

	authStyle, err := authStyleFor(config.AuthMethod)
	if err != nil {
		return nil, err
	}

	p := &Provider{httpClient: httpClient}

	op, err := gooidc.NewProvider(p.withClient(ctx), issuerFromDiscovery(config.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	endpoint := op.Endpoint()
	endpoint.AuthStyle = authStyle
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     endpoint,
	}

	return p, nil
}

func issuerFromDiscovery(u string) string {
	issuer := strings.TrimSuffix(u, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}

func authStyleFor(method string) (oauth2.AuthStyle, error) {
	switch method {
	case "", "client_secret_post":
		return oauth2.AuthStyleInParams, nil
	case "client_secret_basic":
		return oauth2.AuthStyleInHeader, nil
	default:
		return oauth2.AuthStyleAutoDetect, fmt.Errorf("unsupported client auth method %q", method)
	}
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	state, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	}
	if in.RedirectURL != "" && in.RedirectURL != p.config.RedirectURL {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", in.RedirectURL))
	}
	return p.config.AuthCodeURL(state, opts...), state, nonce, nil
}

// Exchange redeems the code, verifies the ID token and its nonce, and
// returns the ID token claims alongside the userinfo claims.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if in.Code == "" {
		return domainauth.Identity{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Identity{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	ctx = p.withClient(ctx)
	var opts []oauth2.AuthCodeOption
	if in.RedirectURL != "" && in.RedirectURL != p.config.RedirectURL {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", in.RedirectURL))
	}
	token, err := p.config.Exchange(ctx, in.Code, opts...)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	idClaims, err := p.verifyIDToken(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}

	userInfo, err := p.userInfo(ctx, token, idClaims)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("get user info: %w", err)
	}

	return domainauth.Identity{IDToken: idClaims, UserInfo: userInfo}, nil
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (domainauth.Claims, error) {
	if !slices.Contains(p.config.Scopes, "openid") {
		return nil, errors.New("openid scope not configured")
	}
	rawID, err := rawIDToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if idTok.Nonce != expectedNonce {
		return nil, errors.New("invalid nonce")
	}
	var claims domainauth.Claims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if _, ok := claims.IssuedAt(); !ok {
		return nil, errors.New("id_token has no iat claim")
	}
	return claims, nil
}

// userInfo fetches the userinfo claims. Providers without a userinfo
// endpoint fall back to the ID token claims.
func (p *Provider) userInfo(ctx context.Context, tok *oauth2.Token, idClaims domainauth.Claims) (domainauth.Claims, error) {
	if p.oidcProvider.UserInfoEndpoint() == "" {
		return idClaims, nil
	}
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	if sub, _ := idClaims.String("sub"); sub != "" && ui.Subject != sub {
		return nil, errors.New("userinfo subject does not match id_token")
	}
	var claims domainauth.Claims
	if claimsErr := ui.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return claims, nil
}

// randomToken returns length URL-safe characters from crypto/rand.
func randomToken(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

func rawIDToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
