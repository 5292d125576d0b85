package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/domain/access"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/domain/model"
	mocks "github.com/target/oidc-gate/internal/mocks/auth"
	"github.com/target/oidc-gate/internal/observability/metrics"
	"github.com/target/oidc-gate/internal/service"
)

const sessionCookieName = "oidcgate_session"

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: os.DirFS(TemplatePathFromTest),
	})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

// ContainsAll checks if a string contains all the given substrings.
func ContainsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// routerHarness serves the full router against in-memory ports.
type routerHarness struct {
	gate     *service.GateOptions
	sessions *mocks.MemorySessionStore
	users    *mocks.MemoryUsers
	content  *mocks.MemoryContent
	comments *mocks.MemoryComments
	provider *mocks.MockAuthProvider
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	policy   *service.RedirectPolicy
	handler  http.Handler
}

func testGate() *service.GateOptions {
	return &service.GateOptions{
		HomeURL:         "https://www.example.edu",
		AdminPath:       "/admin",
		NativeLoginPath: "/login",
		CallbackPath:    "/auth/callback",
		StatusPath:      "/auth/status",
		SiteACL:         access.Everyone(),
		AvailableGroups: access.AvailableGroups([]string{"staff", "faculty"}),
		LoginAction:     config.ActionSetting,
		LogoutAction:    config.ActionSmart,
		SessionLength:   time.Hour,
		NativeMode:      config.NativeModeNo,
		Claims: config.ClaimsConfig{
			Username: "preferred_username", Email: "email", FullName: "name",
			GivenName: "given_name", FamilyName: "family_name", Groups: "edumember_ismemberof",
		}.Map(),
		AdminEmail: "webmaster@example.edu",
	}
}

func newRouterHarness(t *testing.T, mutate ...func(*service.GateOptions)) *routerHarness {
	t.Helper()
	gate := testGate()
	for _, m := range mutate {
		m(gate)
	}
	h := &routerHarness{
		gate:     gate,
		sessions: mocks.NewMemorySessionStore(),
		users:    mocks.NewMemoryUsers(),
		content:  mocks.NewMemoryContent(),
		comments: mocks.NewMemoryComments(),
		provider: mocks.NewMockAuthProvider(),
		registry: prometheus.NewRegistry(),
	}
	h.metrics = metrics.New(h.registry, nil)

	scope := service.NewRequestScope(service.RequestScopeOptions{
		Gate:   gate,
		Stores: service.RequestStores{Sessions: h.sessions, Native: &mocks.MemoryNativeSessions{}, Users: h.users},
		Cookie: service.SessionCookie{Name: sessionCookieName},
	})
	verifier := service.NewVerifier(mocks.NewMemoryInternals(), []byte("test-key"))
	h.policy = service.NewRedirectPolicy(service.RedirectPolicyOptions{Gate: gate, Verifier: verifier})
	accessSvc := service.NewAccessService(service.AccessServiceOptions{Groups: h.content, Metrics: h.metrics})
	content := service.NewContentService(service.ContentServiceOptions{
		Repos:  service.ContentRepos{Posts: h.content, Comments: h.comments, Groups: h.content},
		Access: accessSvc,
		Policy: h.policy,
	})
	auth := service.NewAuthService(service.AuthServiceOptions{Provider: h.provider, Policy: h.policy, Users: h.users})

	handler, err := NewRouter(RouterServices{
		Scope:    scope,
		Access:   accessSvc,
		Content:  content,
		Auth:     auth,
		Policy:   h.policy,
		Metrics:  h.metrics,
		Gatherer: h.registry,
		Readiness: map[string]ReadinessCheck{
			"database": func(context.Context) error { return nil },
		},
		Logger: nil,
	})
	require.NoError(t, err)
	h.handler = handler
	return h
}

// do serves one request through the router.
func (h *routerHarness) do(method, target string, body io.Reader, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, body)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, r)
	return w
}

func (h *routerHarness) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, target, nil, cookies...)
}

// oidcSession seeds a valid OIDC session for a member of groups.
func (h *routerHarness) oidcSession(t *testing.T, groups ...string) *http.Cookie {
	t.Helper()
	id := mocks.DefaultIdentity(time.Now())
	list := make([]any, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}
	id.UserInfo["edumember_ismemberof"] = list
	idToken, err := json.Marshal(id.IDToken)
	require.NoError(t, err)
	userinfo, err := json.Marshal(id.UserInfo)
	require.NoError(t, err)
	require.NoError(t, h.sessions.Set(context.Background(), "sess-1", map[string]string{
		domainauth.KeyState:    string(domainauth.StateValid),
		domainauth.KeyIDToken:  string(idToken),
		domainauth.KeyUserInfo: string(userinfo),
	}))
	return &http.Cookie{Name: sessionCookieName, Value: "sess-1"}
}

// nativeLogin registers a native account and returns its login cookie.
func (h *routerHarness) nativeLogin(login string, admin bool) *http.Cookie {
	_, _ = h.users.Create(context.Background(), &domainauth.NativeUser{Login: login, SuperAdmin: admin})
	return &http.Cookie{Name: "native_login", Value: login}
}

func (h *routerHarness) addPost(title string, groups ...string) int64 {
	return h.content.Add(model.Post{Title: title, Content: title + " body", Excerpt: title + " excerpt"}, groups...)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func cookieFrom(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
