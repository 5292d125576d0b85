package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/target/oidc-gate/internal/mocks/auth"
	"github.com/target/oidc-gate/internal/service"
)

func TestRouter_Metrics(t *testing.T) {
	h := newRouterHarness(t)
	h.addPost("Staff", "staff")
	h.get("/posts/1")

	w := h.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, ContainsAll(body, []string{
		"oidcgate_access_decisions_total",
		"oidcgate_http_request_duration_seconds",
		`route="GET /posts/{id}"`,
	}), body)
}

func TestRouter_Health(t *testing.T) {
	h := newRouterHarness(t)

	w := h.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = h.get("/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, w.Body.String())
}

func TestReadyHandler_FailingCheck(t *testing.T) {
	handler, err := NewRouter(RouterServices{
		Scope: service.NewRequestScope(service.RequestScopeOptions{
			Gate:   testGate(),
			Stores: service.RequestStores{Sessions: mocks.NewMemorySessionStore(), Native: &mocks.MemoryNativeSessions{}, Users: mocks.NewMemoryUsers()},
		}),
		Gatherer: prometheus.NewRegistry(),
		Readiness: map[string]ReadinessCheck{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})
	require.NoError(t, err)

	h := &routerHarness{handler: handler}
	w := h.get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"database":"ok","redis":"connection refused"}}`, w.Body.String())
}

func TestRouter_Static(t *testing.T) {
	h := newRouterHarness(t)

	w := h.get("/static/css/site.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/css"))

	assert.Equal(t, http.StatusNotFound, h.get("/static/missing.js").Code)
}

func TestRouter_WrongMethodFallsThroughToNotFound(t *testing.T) {
	h := newRouterHarness(t)

	w := h.do(http.MethodGet, "/xmlrpc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
