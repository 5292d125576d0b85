package httpx

import (
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/domain/access"
	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/service"
)

var logoutHref = regexp.MustCompile(`href="(https://www\.example\.edu/auth/logout[^"]*)"`)

// logoutReturn extracts the signed return URL of the page's logout link.
func logoutReturn(t *testing.T, body string) string {
	t.Helper()
	m := logoutHref.FindStringSubmatch(body)
	require.NotNil(t, m, "no logout link in page")
	u, err := url.Parse(html.UnescapeString(m[1]))
	require.NoError(t, err)
	return u.Query().Get(service.ParamReturn)
}

func TestIndex_FiltersRestrictedPosts(t *testing.T) {
	h := newRouterHarness(t)
	h.addPost("Hello world")
	h.addPost("Staff only", "staff")

	w := h.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Hello world")
	assert.NotContains(t, body, "Staff only")
	assert.Contains(t, body, "Log in")
}

func TestIndex_AllNeedLoginRedirects(t *testing.T) {
	h := newRouterHarness(t)
	h.addPost("Members news", access.SentinelLoggedIn)

	w := h.get("/")
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://www.example.edu/auth/login?"))
}

func TestIndex_Pagination(t *testing.T) {
	h := newRouterHarness(t)
	for i := range DefaultPageSize + 2 {
		h.addPost("Post " + strconv.Itoa(i))
	}

	first := h.get("/")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Contains(t, first.Body.String(), `href="?page=2"`)

	second := h.get("/?page=2")
	require.Equal(t, http.StatusOK, second.Code)
	assert.NotContains(t, second.Body.String(), `href="?page=3"`)
}

func TestSiteGate(t *testing.T) {
	t.Run("anonymous is sent to log in", func(t *testing.T) {
		h := newRouterHarness(t, func(g *service.GateOptions) { g.SiteACL = access.LoggedIn() })
		w := h.get("/")
		require.Equal(t, http.StatusFound, w.Code)
		assert.Contains(t, w.Header().Get("Location"), "/auth/login?")
	})

	t.Run("optional native mode uses the native login page", func(t *testing.T) {
		h := newRouterHarness(t, func(g *service.GateOptions) {
			g.SiteACL = access.LoggedIn()
			g.NativeMode = config.NativeModeOptional
		})
		w := h.get("/search?q=x")
		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/login", loc.Path)
		assert.Equal(t, "https://www.example.edu/search?q=x", loc.Query().Get("redirect_to"))
	})

	t.Run("wrong group gets the forbidden page", func(t *testing.T) {
		h := newRouterHarness(t, func(g *service.GateOptions) { g.SiteACL = access.Groups("staff") })
		w := h.get("/", h.oidcSession(t, "students"))
		require.Equal(t, http.StatusForbidden, w.Code)
		body := w.Body.String()
		assert.True(t, ContainsAll(body, []string{"Permission Denied", "You do not have access to the content you requested.", "Go to the main page"}))
		assert.NotContains(t, body, "Go Back")
	})

	t.Run("member passes", func(t *testing.T) {
		h := newRouterHarness(t, func(g *service.GateOptions) { g.SiteACL = access.Groups("staff") })
		h.addPost("Welcome")
		w := h.get("/", h.oidcSession(t, "staff"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Welcome")
	})

	t.Run("feed and api skip the page gate", func(t *testing.T) {
		h := newRouterHarness(t, func(g *service.GateOptions) { g.SiteACL = access.LoggedIn() })
		assert.Equal(t, http.StatusOK, h.get("/feed").Code)
		assert.Equal(t, http.StatusOK, h.get("/auth/status").Code)
		assert.Equal(t, http.StatusOK, h.get("/healthz").Code)
	})
}

func TestPostPage(t *testing.T) {
	h := newRouterHarness(t)
	public := h.addPost("Open letter")
	staff := h.addPost("Budget", "staff")
	_, err := h.comments.Create(t.Context(), &model.Comment{PostID: public, Author: "ann", Content: "Nice"})
	require.NoError(t, err)

	t.Run("public post renders with comments", func(t *testing.T) {
		w := h.get("/posts/" + strconv.FormatInt(public, 10))
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, ContainsAll(w.Body.String(), []string{"Open letter", "Open letter body", "Nice"}))
	})

	t.Run("restricted post redirects anonymous", func(t *testing.T) {
		w := h.get("/posts/" + strconv.FormatInt(staff, 10))
		require.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("restricted post forbids non-members with a back link", func(t *testing.T) {
		w := h.get("/posts/"+strconv.FormatInt(staff, 10), h.oidcSession(t, "students"))
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Go Back")
	})

	t.Run("member reads it", func(t *testing.T) {
		w := h.get("/posts/"+strconv.FormatInt(staff, 10), h.oidcSession(t, "staff"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Budget body")
	})

	t.Run("unknown post", func(t *testing.T) {
		w := h.get("/posts/999")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Not Found")
	})

	t.Run("unknown route", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, h.get("/no/such/page").Code)
	})
}

func TestPostPage_NativeSuperAdminReadsRestrictedPost(t *testing.T) {
	h := newRouterHarness(t)
	staff := h.addPost("Budget", "staff")
	path := "/posts/" + strconv.FormatInt(staff, 10)

	w := h.get(path, h.nativeLogin("root", true))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ContainsAll(w.Body.String(), []string{"Budget", "Budget body", "root"}))

	w = h.get(path, h.nativeLogin("editor", false))
	assert.Equal(t, http.StatusFound, w.Code, "a plain native account is still gated")
}

func TestSmartLogoutFollowsClassification(t *testing.T) {
	h := newRouterHarness(t)
	public := h.addPost("Open")
	staff := h.addPost("Closed", "staff")
	cookie := h.oidcSession(t, "staff")

	w := h.get("/posts/"+strconv.FormatInt(public, 10), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://www.example.edu/posts/"+strconv.FormatInt(public, 10), logoutReturn(t, w.Body.String()))

	w = h.get("/posts/"+strconv.FormatInt(staff, 10), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://www.example.edu", logoutReturn(t, w.Body.String()))
}

func TestSearchPage(t *testing.T) {
	h := newRouterHarness(t)
	h.addPost("Campus map")
	h.addPost("Payroll schedule", access.SentinelLoggedIn)

	w := h.get("/search?q=campus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Campus map")

	w = h.get("/search?q=payroll")
	require.Equal(t, http.StatusFound, w.Code)

	w = h.get("/search?q=payroll", h.oidcSession(t))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payroll schedule")

	w = h.get("/search?q=nothing-matches")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Nothing matched your search.")
}

func TestNoCacheHeaders(t *testing.T) {
	h := newRouterHarness(t)

	anon := h.get("/")
	assert.Empty(t, anon.Header().Get("Expires"))

	w := h.get("/", h.oidcSession(t))
	assert.Equal(t, noCacheExpires, w.Header().Get("Expires"))
	assert.Equal(t, noCacheCacheControl, w.Header().Get("Cache-Control"))
}
