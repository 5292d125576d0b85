package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/target/oidc-gate/internal/ports"
)

type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	JwksURI               string `json:"jwks_uri"`
}

// fakeIdP is an httptest OIDC provider that signs ID tokens with an RSA key.
type fakeIdP struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	// nonce and sub are embedded in the next issued ID token.
	nonce    string
	sub      string
	omitIAT  bool
	userinfo map[string]any
	noUI     bool

	// lastTokenRequest records how the client authenticated.
	lastTokenRequest *http.Request
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIdP{t: t, key: key, sub: "user-1"}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("GET /jwks", f.jwks)
	mux.HandleFunc("POST /token", f.token)
	mux.HandleFunc("GET /userinfo", f.userInfo)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIdP) discovery(w http.ResponseWriter, _ *http.Request) {
	doc := discoveryDocument{
		Issuer:                f.server.URL,
		AuthorizationEndpoint: f.server.URL + "/authorize",
		TokenEndpoint:         f.server.URL + "/token",
		JwksURI:               f.server.URL + "/jwks",
	}
	if !f.noUI {
		doc.UserinfoEndpoint = f.server.URL + "/userinfo"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (f *fakeIdP) jwks(w http.ResponseWriter, _ *http.Request) {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: &f.key.PublicKey, KeyID: "k1", Algorithm: string(jose.RS256), Use: "sig",
	}}}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

func (f *fakeIdP) signIDToken() string {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: f.key, KeyID: "k1"}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(f.t, err)

	now := time.Now()
	claims := map[string]any{
		"iss":   f.server.URL,
		"sub":   f.sub,
		"aud":   "test-client",
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": f.nonce,
	}
	if !f.omitIAT {
		claims["iat"] = now.Unix()
	}
	payload, err := json.Marshal(claims)
	require.NoError(f.t, err)
	jws, err := signer.Sign(payload)
	require.NoError(f.t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(f.t, err)
	return raw
}

func (f *fakeIdP) token(w http.ResponseWriter, r *http.Request) {
	require.NoError(f.t, r.ParseForm())
	f.lastTokenRequest = r
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "at-123",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     f.signIDToken(),
	})
}

func (f *fakeIdP) userInfo(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer at-123" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.userinfo)
}

func (f *fakeIdP) providerConfig() ProviderConfig {
	return ProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid email profile edumember",
		DiscoveryURL: f.server.URL + "/.well-known/openid-configuration",
		HTTPClient:   f.server.Client(),
	}
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{ClientSecret: "s", RedirectURL: "http://l/cb", DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			config: ProviderConfig{ClientID: "c", RedirectURL: "http://l/cb", DiscoveryURL: "http://example.com"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "c", ClientSecret: "s", DiscoveryURL: "http://example.com"},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "c", ClientSecret: "s", RedirectURL: "http://l/cb"},
			errMsg: "discovery URL is required",
		},
		{
			name: "bad auth method",
			config: ProviderConfig{
				ClientID: "c", ClientSecret: "s", RedirectURL: "http://l/cb",
				DiscoveryURL: "http://example.com", AuthMethod: "private_key_jwt",
			},
			errMsg: "unsupported client auth method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	idp := newFakeIdP(t)
	provider, err := NewProvider(context.Background(), idp.providerConfig())
	require.NoError(t, err)

	authURL, state, nonce, err := provider.Begin(context.Background(), ports.BeginInput{})
	require.NoError(t, err)
	assert.Len(t, state, 32)
	assert.Len(t, nonce, 32)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, idp.server.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile edumember", q.Get("scope"))
	assert.Equal(t, "http://localhost:8080/auth/callback", q.Get("redirect_uri"))
}

func TestProvider_Exchange_Success(t *testing.T) {
	idp := newFakeIdP(t)
	idp.nonce = "nonce-1"
	idp.userinfo = map[string]any{
		"sub":                  "user-1",
		"preferred_username":   "alice",
		"edumember_ismemberof": []string{"staff"},
	}
	provider, err := NewProvider(context.Background(), idp.providerConfig())
	require.NoError(t, err)

	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "nonce-1"})
	require.NoError(t, err)

	_, ok := id.IDToken.IssuedAt()
	assert.True(t, ok)
	assert.Equal(t, "alice", id.UserInfo["preferred_username"])
	assert.Equal(t, []any{"staff"}, id.UserInfo["edumember_ismemberof"])

	// client_secret_post sends credentials in the form body.
	require.NotNil(t, idp.lastTokenRequest)
	assert.Equal(t, "test-secret", idp.lastTokenRequest.PostForm.Get("client_secret"))
}

func TestProvider_Exchange_BasicAuth(t *testing.T) {
	idp := newFakeIdP(t)
	idp.nonce = "n"
	idp.userinfo = map[string]any{"sub": "user-1", "preferred_username": "alice"}
	cfg := idp.providerConfig()
	cfg.AuthMethod = "client_secret_basic"
	provider, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	_, err = provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	user, pass, ok := idp.lastTokenRequest.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "test-client", user)
	assert.Equal(t, "test-secret", pass)
	assert.Empty(t, idp.lastTokenRequest.PostForm.Get("client_secret"))
}

func TestProvider_Exchange_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeIdP)
		nonce  string
		errMsg string
	}{
		{
			name:   "nonce mismatch",
			setup:  func(f *fakeIdP) { f.nonce = "other" },
			nonce:  "expected",
			errMsg: "invalid nonce",
		},
		{
			name:   "missing iat",
			setup:  func(f *fakeIdP) { f.nonce = "n"; f.omitIAT = true },
			nonce:  "n",
			errMsg: "no iat",
		},
		{
			name: "userinfo subject mismatch",
			setup: func(f *fakeIdP) {
				f.nonce = "n"
				f.userinfo = map[string]any{"sub": "someone-else"}
			},
			nonce:  "n",
			errMsg: "subject does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := newFakeIdP(t)
			tt.setup(idp)
			provider, err := NewProvider(context.Background(), idp.providerConfig())
			require.NoError(t, err)

			_, err = provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: tt.nonce})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_NoUserinfoEndpoint(t *testing.T) {
	idp := newFakeIdP(t)
	idp.nonce = "n"
	idp.noUI = true
	provider, err := NewProvider(context.Background(), idp.providerConfig())
	require.NoError(t, err)

	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserInfo["sub"])
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	provider := &Provider{}
	for _, in := range []ports.ExchangeInput{
		{State: "s", Nonce: "n"},
		{Code: "c", Nonce: "n"},
		{Code: "c", State: "s"},
	} {
		_, err := provider.Exchange(context.Background(), in)
		assert.Error(t, err)
	}
}

func TestGenerateRandomString(t *testing.T) {
	str1, err := randomToken(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := randomToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, str1, str2)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := rawIDToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = rawIDToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	assert.ErrorContains(t, err, "missing id_token")

	_, err = rawIDToken(nil)
	assert.ErrorContains(t, err, "nil token")
}

func TestIssuerFromDiscovery(t *testing.T) {
	assert.Equal(t, "https://idp.example.com", issuerFromDiscovery("https://idp.example.com/.well-known/openid-configuration"))
	assert.Equal(t, "https://idp.example.com", issuerFromDiscovery("https://idp.example.com/"))
}
