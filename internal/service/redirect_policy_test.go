package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/oidc-gate/config"
)

func parseLink(t *testing.T, link string) (string, url.Values) {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Scheme + "://" + u.Host + u.Path, u.Query()
}

func TestOIDCURL_ReturnTargets(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*GateOptions)
		kind       URLKind
		returnTo   string
		nonPublic  bool
		path       string
		wantReturn string
		noParams   bool
	}{
		{
			name:       "logout smart on public page returns here",
			kind:       KindLogout,
			path:       "/posts/3?x=1",
			wantReturn: "https://www.example.edu/posts/3?x=1",
		},
		{
			name:       "logout smart on restricted page uses setting",
			mutate:     func(g *GateOptions) { g.LogoutReturnURL = "https://www.example.edu/bye" },
			kind:       KindLogout,
			nonPublic:  true,
			path:       "/posts/3",
			wantReturn: "https://www.example.edu/bye",
		},
		{
			name:       "logout smart on restricted page without setting goes home",
			kind:       KindLogout,
			nonPublic:  true,
			path:       "/posts/3",
			wantReturn: "https://www.example.edu",
		},
		{
			name:       "logout smart in admin area uses setting",
			kind:       KindLogout,
			path:       "/admin/posts",
			wantReturn: "https://www.example.edu",
		},
		{
			name:       "login setting without url returns here",
			kind:       KindLogin,
			path:       "/posts/9",
			wantReturn: "https://www.example.edu/posts/9",
		},
		{
			name:       "login smart behaves as setting",
			mutate:     func(g *GateOptions) { g.LoginReturnURL = "https://www.example.edu/welcome" },
			kind:       KindLogin,
			returnTo:   "smart",
			path:       "/posts/9",
			wantReturn: "https://www.example.edu/welcome",
		},
		{
			name:       "empty action falls back to defaults",
			mutate:     func(g *GateOptions) { g.LogoutAction = "" },
			kind:       KindLogout,
			path:       "/about",
			wantReturn: "https://www.example.edu/about",
		},
		{
			name:       "literal url",
			kind:       KindLogin,
			returnTo:   "https://www.example.edu/x",
			path:       "/",
			wantReturn: "https://www.example.edu/x",
		},
		{
			name:     "home adds no return parameters",
			kind:     KindLogin,
			returnTo: "home",
			path:     "/posts/1",
			noParams: true,
		},
		{
			name:       "mandatory native login never logs out into admin",
			mutate:     func(g *GateOptions) { g.NativeMode = config.NativeModeYes },
			kind:       KindLogout,
			returnTo:   "https://www.example.edu/admin/edit",
			path:       "/",
			wantReturn: "https://www.example.edu",
		},
		{
			name:       "native login page target avoids a loop",
			mutate:     func(g *GateOptions) { g.NativeMode = config.NativeModeOptional },
			kind:       KindLogin,
			returnTo:   "https://www.example.edu/login/",
			path:       "/",
			wantReturn: "https://www.example.edu",
		},
		{
			name:       "native login page kept when linking is off",
			kind:       KindLogin,
			returnTo:   "https://www.example.edu/login",
			path:       "/",
			wantReturn: "https://www.example.edu/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *harness
			if tt.mutate != nil {
				h = newHarness(t, tt.mutate)
			} else {
				h = newHarness(t)
			}
			rc, _ := h.request(http.MethodGet, tt.path)
			if tt.nonPublic {
				rc.MarkNonPublic()
			}
			link := h.policy.OIDCURL(context.Background(), rc, tt.kind, tt.returnTo)
			base, q := parseLink(t, link)
			assert.Equal(t, "https://www.example.edu/auth/"+string(tt.kind), base)

			if tt.noParams {
				assert.Empty(t, q)
				return
			}
			assert.Equal(t, tt.wantReturn, q.Get(ParamReturn))
			ok, err := h.verifier.Check(context.Background(), q.Get(ParamVerifier), tt.wantReturn)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestOIDCURL_UnknownKind(t *testing.T) {
	h := newHarness(t)
	rc, _ := h.request(http.MethodGet, "/")
	assert.Empty(t, h.policy.OIDCURL(context.Background(), rc, URLKind("register"), ""))
}

func TestCheckReturnURL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	good, err := h.verifier.Create(ctx, "https://www.example.edu/posts/1")
	require.NoError(t, err)
	evil, err := h.verifier.Create(ctx, "https://evil.example.com/")
	require.NoError(t, err)

	build := func(q url.Values) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/auth/login?"+q.Encode(), nil)
	}

	t.Run("no return parameter yields home", func(t *testing.T) {
		got, err := h.policy.CheckReturnURL(ctx, build(url.Values{}))
		require.NoError(t, err)
		assert.Equal(t, "https://www.example.edu", got)
	})

	t.Run("valid", func(t *testing.T) {
		got, err := h.policy.CheckReturnURL(ctx, build(url.Values{
			ParamReturn: {"https://www.example.edu/posts/1"}, ParamVerifier: {good},
		}))
		require.NoError(t, err)
		assert.Equal(t, "https://www.example.edu/posts/1", got)
	})

	t.Run("missing verifier", func(t *testing.T) {
		_, err := h.policy.CheckReturnURL(ctx, build(url.Values{ParamReturn: {"https://www.example.edu/"}}))
		require.ErrorIs(t, err, ErrUnsafeLink)
		assert.Contains(t, err.Error(), "missing nonce")
	})

	t.Run("incorrect verifier", func(t *testing.T) {
		_, err := h.policy.CheckReturnURL(ctx, build(url.Values{
			ParamReturn: {"https://www.example.edu/posts/2"}, ParamVerifier: {good},
		}))
		require.ErrorIs(t, err, ErrUnsafeLink)
		assert.Contains(t, err.Error(), "incorrect nonce")
	})

	t.Run("signed but off-site destination", func(t *testing.T) {
		_, err := h.policy.CheckReturnURL(ctx, build(url.Values{
			ParamReturn: {"https://evil.example.com/"}, ParamVerifier: {evil},
		}))
		assert.ErrorIs(t, err, ErrBadDestination)
	})
}

func TestValidateRedirect(t *testing.T) {
	h := newHarness(t, func(g *GateOptions) { g.LoginReturnURL = "https://portal.example.edu/home" })

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/posts/1", "https://www.example.edu/posts/1", true},
		{"https://www.example.edu/a", "https://www.example.edu/a", true},
		{"http://WWW.example.edu:8443/a", "http://WWW.example.edu:8443/a", true},
		{"https://portal.example.edu/x", "https://portal.example.edu/x", true},
		{"//evil.example.com/", "", false},
		{"https://evil.example.com/", "", false},
		{"javascript:alert(1)", "", false},
		{"relative/path", "", false},
		{"https://user@www.example.edu/", "", false},
		{"/\\evil.example.com", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := h.policy.ValidateRedirect(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCurrentURL_StripsHomePath(t *testing.T) {
	h := newHarness(t, func(g *GateOptions) { g.HomeURL = "https://www.example.edu/news" })

	r := httptest.NewRequest(http.MethodGet, "/news/posts/1?q=2", nil)
	assert.Equal(t, "https://www.example.edu/news/posts/1?q=2", h.policy.CurrentURL(r))

	r = httptest.NewRequest(http.MethodGet, "/NEWS", nil)
	assert.Equal(t, "https://www.example.edu/news/", h.policy.CurrentURL(r))

	r = httptest.NewRequest(http.MethodGet, "/newsletter", nil)
	assert.Equal(t, "https://www.example.edu/news/newsletter", h.policy.CurrentURL(r))
}

func TestDenialRedirect(t *testing.T) {
	tests := []struct {
		mode       config.NativeMode
		path       string
		wantPrefix string
	}{
		{config.NativeModeYes, "/posts/1", "https://www.example.edu/auth/login?"},
		{config.NativeModeOptional, "/posts/1", "https://www.example.edu/login?redirect_to="},
		{config.NativeModeNo, "/posts/1", "https://www.example.edu/auth/login?"},
		{config.NativeModeNo, "/admin/", "https://www.example.edu/login?redirect_to="},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+tt.path, func(t *testing.T) {
			h := newHarness(t, func(g *GateOptions) { g.NativeMode = tt.mode })
			rc, _ := h.request(http.MethodGet, tt.path)
			got := h.policy.DenialRedirect(context.Background(), rc)
			assert.True(t, strings.HasPrefix(got, tt.wantPrefix), got)
		})
	}
}

func TestLoginAndLogoutURLs(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous outside admin gets native login", func(t *testing.T) {
		h := newHarness(t)
		rc, _ := h.request(http.MethodGet, "/posts/1")
		assert.True(t, strings.HasPrefix(h.policy.LoginURL(ctx, rc), "https://www.example.edu/login"))
		assert.True(t, strings.HasPrefix(h.policy.LogoutURL(ctx, rc), "https://www.example.edu/auth/logout"))
	})

	t.Run("oidc session uses oidc links", func(t *testing.T) {
		h := newHarness(t)
		cookie := h.oidcSession(t, h.now.Add(-time.Minute), "staff")
		rc, _ := h.request(http.MethodGet, "/posts/1", cookie)
		assert.True(t, strings.HasPrefix(h.policy.LoginURL(ctx, rc), "https://www.example.edu/auth/login"))
		assert.True(t, strings.HasPrefix(h.policy.LogoutURL(ctx, rc), "https://www.example.edu/auth/logout"))
	})

	t.Run("admin area without oidc session uses native logout", func(t *testing.T) {
		h := newHarness(t)
		rc, _ := h.request(http.MethodGet, "/admin/")
		assert.Equal(t, "https://www.example.edu/login?action=logout", h.policy.LogoutURL(ctx, rc))
	})

	t.Run("mandatory native login always uses oidc", func(t *testing.T) {
		h := newHarness(t, func(g *GateOptions) { g.NativeMode = config.NativeModeYes })
		rc, _ := h.request(http.MethodGet, "/admin/")
		assert.True(t, strings.HasPrefix(h.policy.LoginURL(ctx, rc), "https://www.example.edu/auth/login"))
		assert.True(t, strings.HasPrefix(h.policy.LogoutURL(ctx, rc), "https://www.example.edu/auth/logout"))
	})
}

func TestCookieDomain(t *testing.T) {
	assert.Equal(t, "custom.example.edu", CookieDomain(".custom.example.edu", "https://www.example.edu"))
	assert.Equal(t, "example.edu", CookieDomain("", "https://www.example.edu/news"))
	assert.Equal(t, "news.example.edu", CookieDomain("", "https://news.example.edu:8443"))
	assert.Empty(t, CookieDomain("", "http://localhost:8080"))
	assert.Empty(t, CookieDomain("", "http://127.0.0.1:8080"))
	assert.Empty(t, CookieDomain("", "https://github.io"))
}

func TestGateOptions_PathPrefixesMatchWholeSegments(t *testing.T) {
	g := testGate()
	for u, want := range map[string]bool{
		"https://www.example.edu/admin":              true,
		"https://www.example.edu/admin/":             true,
		"https://www.example.edu/admin/posts?id=3":   true,
		"https://www.example.edu/admin?page=options": true,
		"https://www.example.edu/admin#top":          true,
		"https://www.example.edu/administration":     false,
		"https://www.example.edu/admins/list":        false,
		"https://www.example.edu/news/admin":         false,
	} {
		assert.Equal(t, want, g.InAdmin(u), u)
	}

	for u, want := range map[string]bool{
		"https://www.example.edu/login":               true,
		"https://www.example.edu/login/":              true,
		"https://www.example.edu/login?action=logout": true,
		"https://www.example.edu/login-help":          false,
		"https://www.example.edu/loginsettings?x=1":   false,
	} {
		assert.Equal(t, want, g.IsNativeLoginPage(u), u)
	}
}
