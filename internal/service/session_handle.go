package service

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// SessionCookie describes the cookie that carries the OIDC session id.
type SessionCookie struct {
	Name   string
	Domain string
	Path   string
	Secure bool
	// MaxAge of zero issues a browser-session cookie.
	MaxAge time.Duration
}

// namespacedKeys are every key this service writes into a session.
var namespacedKeys = []string{
	domainauth.KeyState,
	domainauth.KeyIDToken,
	domainauth.KeyUserInfo,
	domainauth.KeyReturnURL,
	domainauth.KeyOAuthState,
	domainauth.KeyOAuthNonce,
}

// SessionHandle is the request's view of the visitor session.
//
// A request without a session cookie never touches the store until the
// first write, which mints a new id and sets the cookie. Anonymous traffic
// therefore stays cacheable.
type SessionHandle struct {
	store  ports.SessionStore
	cookie SessionCookie
	w      http.ResponseWriter

	id     string
	values map[string]string
	loaded bool
}

// NewSessionHandle binds a session handle to one request/response pair.
func NewSessionHandle(store ports.SessionStore, cookie SessionCookie, w http.ResponseWriter, r *http.Request) *SessionHandle {
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	h := &SessionHandle{store: store, cookie: cookie, w: w}
	if c, err := r.Cookie(cookie.Name); err == nil && c.Value != "" {
		h.id = c.Value
	}
	return h
}

// ID returns the session id, or "" when the visitor has no session.
func (h *SessionHandle) ID() string { return h.id }

// Active reports whether the request carries a session.
func (h *SessionHandle) Active() bool { return h.id != "" }

func (h *SessionHandle) load(ctx context.Context) error {
	if h.loaded {
		return nil
	}
	if h.id == "" {
		h.values = map[string]string{}
		h.loaded = true
		return nil
	}
	values, err := h.store.Load(ctx, h.id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	h.values = values
	h.loaded = true
	return nil
}

// Get returns the value stored under key, or "" when absent.
func (h *SessionHandle) Get(ctx context.Context, key string) (string, error) {
	if err := h.load(ctx); err != nil {
		return "", err
	}
	return h.values[key], nil
}

// Set stores a single key.
func (h *SessionHandle) Set(ctx context.Context, key, value string) error {
	return h.SetMany(ctx, map[string]string{key: value})
}

// SetMany stores several keys at once, creating the session if needed.
func (h *SessionHandle) SetMany(ctx context.Context, values map[string]string) error {
	if err := h.load(ctx); err != nil {
		return err
	}
	if h.id == "" {
		h.id = uuid.NewString()
		h.writeCookie(h.id, h.cookie.MaxAge)
	}
	if err := h.store.Set(ctx, h.id, values); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	maps.Copy(h.values, values)
	return nil
}

// Clear removes keys from the session.
func (h *SessionHandle) Clear(ctx context.Context, keys ...string) error {
	if h.id == "" || len(keys) == 0 {
		return nil
	}
	if err := h.load(ctx); err != nil {
		return err
	}
	if err := h.store.Delete(ctx, h.id, keys...); err != nil {
		return fmt.Errorf("clear session keys: %w", err)
	}
	for _, k := range keys {
		delete(h.values, k)
	}
	return nil
}

// ClearAll removes every key this service owns. When nothing else remains
// the session is destroyed and its cookie expired.
func (h *SessionHandle) ClearAll(ctx context.Context) error {
	if h.id == "" {
		return nil
	}
	if err := h.Clear(ctx, namespacedKeys...); err != nil {
		return err
	}
	if len(h.values) > 0 {
		return nil
	}
	if err := h.store.Destroy(ctx, h.id); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	h.id = ""
	h.writeCookie("", -1)
	return nil
}

func (h *SessionHandle) writeCookie(value string, maxAge time.Duration) {
	if h.w == nil {
		return
	}
	c := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     h.cookie.Path,
		Domain:   h.cookie.Domain,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case maxAge < 0:
		c.MaxAge = -1
		c.Expires = time.Unix(1, 0)
	case maxAge > 0:
		c.MaxAge = int(maxAge / time.Second)
	}
	http.SetCookie(h.w, c)
}
