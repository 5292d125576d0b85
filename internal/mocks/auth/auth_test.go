package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/oidc-gate/internal/domain/model"
	"github.com/target/oidc-gate/internal/ports"
)

func TestMockAuthProvider_Begin_Defaults(t *testing.T) {
	provider := NewMockAuthProvider()
	ctx := context.Background()

	input := ports.BeginInput{RedirectURL: "http://localhost:8080/auth/callback"}
	authURL, state, nonce, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "https://mock-idp/auth", authURL)
	assert.Equal(t, "state-1", state)
	assert.Equal(t, "nonce-1", nonce)

	_, state2, nonce2, err := provider.Begin(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "state-2", state2)
	assert.Equal(t, "nonce-2", nonce2)
}

func TestMockAuthProvider_Exchange(t *testing.T) {
	provider := NewMockAuthProvider()
	id, err := provider.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, "mockuser", id.UserInfo["preferred_username"])
	_, ok := id.IDToken.IssuedAt()
	assert.True(t, ok)
	assert.Equal(t, "c", provider.LastExchange.Code)
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	require.Error(t, store.Set(ctx, "", map[string]string{"a": "b"}))
	require.NoError(t, store.Set(ctx, "s1", map[string]string{"state": "valid", "return_url": "/x"}))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "valid", got["state"])

	require.NoError(t, store.Delete(ctx, "s1", "return_url"))
	assert.Equal(t, map[string]string{"state": "valid"}, store.Snapshot("s1"))

	require.NoError(t, store.Destroy(ctx, "s1"))
	got, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryNativeSessions(t *testing.T) {
	ns := &MemoryNativeSessions{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, ns.Login(rec, req, "alice", time.Hour))

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req2.AddCookie(c)
	}
	login, ok := ns.Current(req2)
	assert.True(t, ok)
	assert.Equal(t, "alice", login)
}

func TestMemoryContent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryContent()
	a := c.Add(model.Post{Title: "Alpha", Content: "first"}, "staff")
	c.Add(model.Post{Title: "Beta", Content: "second"})

	groups, err := c.GetAccessGroups(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"staff"}, groups)

	list, err := c.List(ctx, model.PostListOptions{Q: "second"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Beta", list[0].Title)

	n, err := c.Count(ctx, model.PostListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ErrorIs(t, c.SetAccessGroups(ctx, 99, nil), ErrNotFound)
}

func TestMemoryInternals(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryInternals()
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := m.SetIfAbsent(ctx, "k", "first")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	v, err = m.SetIfAbsent(ctx, "k", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, 1, m.Sets)
}
