// Package cookiesession keeps the native account login in a signed cookie.
package cookiesession

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/target/oidc-gate/internal/ports"
)

const (
	valueLogin   = "login"
	valueExpires = "expires"
)

// Options configures the native login cookie.
type Options struct {
	Name     string // default oidcgate_native
	Domain   string
	Path     string // default /
	Secure   bool
	HashKey  []byte
	BlockKey []byte // optional; enables encryption
	Now      func() time.Time
}

// Store implements ports.NativeSessions on a gorilla/sessions CookieStore.
type Store struct {
	store *sessions.CookieStore
	name  string
	now   func() time.Time
}

var _ ports.NativeSessions = (*Store)(nil)

// New builds a Store. HashKey is required.
func New(opts Options) (*Store, error) {
	if len(opts.HashKey) == 0 {
		return nil, errors.New("cookiesession: hash key is required")
	}
	if opts.Name == "" {
		opts.Name = "oidcgate_native"
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	keys := [][]byte{opts.HashKey}
	if len(opts.BlockKey) > 0 {
		keys = append(keys, opts.BlockKey)
	}
	cs := sessions.NewCookieStore(keys...)
	cs.Options = &sessions.Options{
		Path:     opts.Path,
		Domain:   opts.Domain,
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// Expiry is tracked in the cookie payload; the codec must not reject
	// sessions longer than its own default.
	cs.MaxAge(0)

	return &Store{store: cs, name: opts.Name, now: opts.Now}, nil
}

// Current returns the login carried by a valid, unexpired cookie.
func (s *Store) Current(r *http.Request) (string, bool) {
	sess, err := s.store.Get(r, s.name)
	if err != nil || sess.IsNew {
		return "", false
	}
	login, _ := sess.Values[valueLogin].(string)
	if login == "" {
		return "", false
	}
	exp, _ := sess.Values[valueExpires].(int64)
	if exp != 0 && s.now().Unix() >= exp {
		return "", false
	}
	return login, true
}

// Login issues the cookie for login, valid for ttl.
func (s *Store) Login(w http.ResponseWriter, r *http.Request, login string, ttl time.Duration) error {
	if login == "" {
		return errors.New("cookiesession: login is required")
	}
	// A stale or tampered cookie yields a fresh session plus an error; start over.
	sess, _ := s.store.Get(r, s.name)
	sess.Values[valueLogin] = login
	if ttl > 0 {
		sess.Values[valueExpires] = s.now().Add(ttl).Unix()
		sess.Options.MaxAge = int(ttl / time.Second)
	} else {
		delete(sess.Values, valueExpires)
	}
	return sess.Save(r, w)
}

// Logout expires the cookie.
func (s *Store) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, s.name)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}
