package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/domain/access"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	mocks "github.com/target/oidc-gate/internal/mocks/auth"
)

const testCookie = "oidcgate_session"

// harness wires every service against in-memory ports.
type harness struct {
	gate      *GateOptions
	now       time.Time
	sessions  *mocks.MemorySessionStore
	native    *mocks.MemoryNativeSessions
	users     *mocks.MemoryUsers
	content   *mocks.MemoryContent
	comments  *mocks.MemoryComments
	internals *mocks.MemoryInternals
	provider  *mocks.MockAuthProvider

	scope    *RequestScope
	verifier *Verifier
	policy   *RedirectPolicy
	access   *AccessService
	auth     *AuthService
	posts    *ContentService
	recorder *decisionLog
}

type decisionLog struct {
	entries []string
}

func (d *decisionLog) RecordDecision(surface string, decision access.Decision) {
	d.entries = append(d.entries, surface+":"+decision.String())
}

func testGate() *GateOptions {
	return &GateOptions{
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
	}
}

func newHarness(t *testing.T, mutate ...func(*GateOptions)) *harness {
	t.Helper()
	gate := testGate()
	for _, m := range mutate {
		m(gate)
	}
	h := &harness{
		gate:      gate,
		now:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		sessions:  mocks.NewMemorySessionStore(),
		native:    &mocks.MemoryNativeSessions{},
		users:     mocks.NewMemoryUsers(),
		content:   mocks.NewMemoryContent(),
		comments:  mocks.NewMemoryComments(),
		internals: mocks.NewMemoryInternals(),
		provider:  mocks.NewMockAuthProvider(),
		recorder:  &decisionLog{},
	}
	h.scope = NewRequestScope(RequestScopeOptions{
		Gate:   gate,
		Stores: RequestStores{Sessions: h.sessions, Native: h.native, Users: h.users},
		Cookie: SessionCookie{Name: testCookie},
		Now:    func() time.Time { return h.now },
	})
	h.verifier = NewVerifier(h.internals, []byte("test-key"))
	h.policy = NewRedirectPolicy(RedirectPolicyOptions{Gate: gate, Verifier: h.verifier})
	h.access = NewAccessService(AccessServiceOptions{Groups: h.content, Metrics: h.recorder})
	h.auth = NewAuthService(AuthServiceOptions{Provider: h.provider, Policy: h.policy, Users: h.users})
	h.posts = NewContentService(ContentServiceOptions{
		Repos:  ContentRepos{Posts: h.content, Comments: h.comments, Groups: h.content},
		Access: h.access,
		Policy: h.policy,
	})
	return h
}

// request builds a RequestContext for method and target.
func (h *harness) request(method, target string, cookies ...*http.Cookie) (*RequestContext, *httptest.ResponseRecorder) {
	r := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	return h.scope.Begin(w, r), w
}

// oidcSession seeds a valid OIDC session issued at iat and returns its cookie.
func (h *harness) oidcSession(t *testing.T, iat time.Time, groups ...string) *http.Cookie {
	t.Helper()
	id := mocks.DefaultIdentity(iat)
	list := make([]any, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}
	id.UserInfo["edumember_ismemberof"] = list
	return h.seedSession(t, "sess-1", map[string]any{
		domainauth.KeyState:    string(domainauth.StateValid),
		domainauth.KeyIDToken:  id.IDToken,
		domainauth.KeyUserInfo: id.UserInfo,
	})
}

func (h *harness) seedSession(t *testing.T, id string, values map[string]any) *http.Cookie {
	t.Helper()
	stored := map[string]string{}
	for k, v := range values {
		if s, ok := v.(string); ok {
			stored[k] = s
			continue
		}
		b, err := json.Marshal(v)
		require.NoError(t, err)
		stored[k] = string(b)
	}
	require.NoError(t, h.sessions.Set(context.Background(), id, stored))
	return &http.Cookie{Name: testCookie, Value: id}
}

// nativeLogin registers a native account and returns its login cookie.
func (h *harness) nativeLogin(login string, admin bool) *http.Cookie {
	_, _ = h.users.Create(context.Background(), &domainauth.NativeUser{Login: login, SuperAdmin: admin})
	return &http.Cookie{Name: "native_login", Value: login}
}
