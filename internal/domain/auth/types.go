package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// SessionState is the OIDC login state persisted in the session.
type SessionState string

const (
	StateNone    SessionState = "none"
	StateValid   SessionState = "valid"
	StateExpired SessionState = "expired"
)

// ParseSessionState maps stored values to a state; unknown values are none.
func ParseSessionState(s string) SessionState {
	switch SessionState(s) {
	case StateValid, StateExpired:
		return SessionState(s)
	default:
		return StateNone
	}
}

// Session keys. Every key lives inside the per-visitor session namespace.
const (
	KeyState      = "state"
	KeyIDToken    = "id_token"
	KeyUserInfo   = "userinfo"
	KeyReturnURL  = "return_url"
	KeyOAuthState = "oauth_state"
	KeyOAuthNonce = "oauth_nonce"
)

// Claims is a decoded JSON claims object.
type Claims map[string]any

// IssuedAt returns the iat claim. ok is false when it is missing or not numeric.
func (c Claims) IssuedAt() (time.Time, bool) {
	var secs float64
	switch v := c["iat"].(type) {
	case float64:
		secs = v
	case int64:
		secs = float64(v)
	case int:
		secs = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		secs = f
	default:
		return time.Time{}, false
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0), true
}

// String returns the claim at key if it is a string.
func (c Claims) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Identity represents the authenticated principal returned by an IdP:
// the verified ID token claims and the userinfo claims.
type Identity struct {
	IDToken  Claims
	UserInfo Claims
}

// ErrNoSuchUser is returned when no native account has the requested login.
var ErrNoSuchUser = errors.New("native user not found")

// NativeUser is a site account that an OIDC identity can be linked to by login.
type NativeUser struct {
	ID          int64     `db:"id"           json:"id"`
	Login       string    `db:"login"        json:"login"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email"        json:"email"`
	SuperAdmin  bool      `db:"super_admin"  json:"super_admin"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
