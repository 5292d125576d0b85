package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/oidc-gate/internal/domain/auth"
)

// ClaimEvaluator resolves nested claim expressions.
type ClaimEvaluator interface {
	Evaluate(expr string, data any) (any, error)
}

// jmespathClaims implements ClaimEvaluator using go-jmespath.
type jmespathClaims struct{}

func (jmespathClaims) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// UserSessionOptions groups dependencies for UserSession.
type UserSessionOptions struct {
	Session *SessionHandle
	Gate    *GateOptions
	Runtime UserSessionRuntime
}

// UserSessionRuntime carries per-request behavior for UserSession.
type UserSessionRuntime struct {
	// AJAX requests never consume an expired state.
	AJAX bool
	// OnExpire runs when the login outlived the session length.
	OnExpire  func(ctx context.Context) error
	Now       func() time.Time
	Logger    *slog.Logger
	Evaluator ClaimEvaluator
}

// UserSession derives the OIDC login state of the visitor from the session.
// It is evaluated lazily, once per request.
type UserSession struct {
	session *SessionHandle
	gate    *GateOptions
	rt      UserSessionRuntime

	initialized bool
	state       domainauth.SessionState
	idToken     domainauth.Claims
	userinfo    domainauth.Claims
}

// NewUserSession constructs a UserSession.
func NewUserSession(opts UserSessionOptions) *UserSession {
	rt := opts.Runtime
	if rt.Now == nil {
		rt.Now = time.Now
	}
	if rt.Logger == nil {
		rt.Logger = slog.Default()
	}
	if rt.Evaluator == nil {
		rt.Evaluator = jmespathClaims{}
	}
	return &UserSession{session: opts.Session, gate: opts.Gate, rt: rt, state: domainauth.StateNone}
}

func (u *UserSession) init(ctx context.Context) {
	if u.initialized {
		return
	}
	u.initialized = true

	raw, err := u.session.Get(ctx, domainauth.KeyState)
	if err != nil {
		u.rt.Logger.ErrorContext(ctx, "user session: read session", "error", err)
		return
	}
	u.state = domainauth.ParseSessionState(raw)

	idToken := decodeClaims(ctx, u.session, domainauth.KeyIDToken)
	userinfo := decodeClaims(ctx, u.session, domainauth.KeyUserInfo)
	iat, hasIAT := idToken.IssuedAt()
	if idToken == nil || !hasIAT || userinfo == nil {
		if u.state == domainauth.StateExpired && !u.rt.AJAX {
			// A real page load consumes the expired state; heartbeats leave it for the UI.
			u.rt.Logger.DebugContext(ctx, "user session: page load, clearing expired session")
			u.persistState(ctx, domainauth.StateNone)
		}
		return
	}

	if u.rt.Now().After(iat.Add(u.gate.SessionLength)) {
		u.rt.Logger.InfoContext(ctx, "user session: session length exceeded, logging out",
			"session_length", u.gate.SessionLength.String())
		if u.rt.OnExpire != nil {
			if err := u.rt.OnExpire(ctx); err != nil {
				u.rt.Logger.ErrorContext(ctx, "user session: logout on expiry", "error", err)
			}
		}
		u.persistState(ctx, domainauth.StateExpired)
		return
	}

	claim, ok := u.gate.ClaimName("username")
	if !ok || claim == "" {
		u.rt.Logger.ErrorContext(ctx, "user session: username claim mapping not set")
		u.persistState(ctx, domainauth.StateNone)
		return
	}
	if _, ok := userinfo[claim]; !ok {
		u.rt.Logger.ErrorContext(ctx, "user session: username missing from userinfo", "claim", claim)
		u.persistState(ctx, domainauth.StateNone)
		return
	}

	u.idToken = idToken
	u.userinfo = userinfo
}

// forget drops the cached login after the session was cleared, so the rest of
// the request sees an anonymous visitor.
func (u *UserSession) forget() {
	u.initialized = true
	u.state = domainauth.StateNone
	u.idToken = nil
	u.userinfo = nil
}

func (u *UserSession) persistState(ctx context.Context, state domainauth.SessionState) {
	u.state = state
	if err := u.session.Set(ctx, domainauth.KeyState, string(state)); err != nil {
		u.rt.Logger.ErrorContext(ctx, "user session: persist state", "state", string(state), "error", err)
	}
}

func decodeClaims(ctx context.Context, h *SessionHandle, key string) domainauth.Claims {
	raw, err := h.Get(ctx, key)
	if err != nil || raw == "" {
		return nil
	}
	var c domainauth.Claims
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil
	}
	return c
}

// State returns the session state.
func (u *UserSession) State(ctx context.Context) domainauth.SessionState {
	u.init(ctx)
	return u.state
}

// LoggedIn reports whether a valid OIDC login is present.
func (u *UserSession) LoggedIn(ctx context.Context) bool {
	u.init(ctx)
	return u.userinfo != nil
}

// UserInfo looks up a claim. Logical keys go through the claim mapping
// unless prefixed with "userinfo:". A key that is not a literal claim is
// tried as a JMESPath expression, which reaches nested claims.
func (u *UserSession) UserInfo(ctx context.Context, key string, def any) any {
	u.init(ctx)

	if rest, ok := strings.CutPrefix(key, "userinfo:"); ok {
		key = rest
	} else if mapped, ok := u.gate.ClaimName(key); ok {
		key = mapped
	}

	if key == "" || u.userinfo == nil {
		return def
	}
	if v, ok := u.userinfo[key]; ok {
		return v
	}
	v, err := u.rt.Evaluator.Evaluate(key, map[string]any(u.userinfo))
	if err != nil || v == nil {
		return def
	}
	return v
}

// Username returns the mapped username claim, or "".
func (u *UserSession) Username(ctx context.Context) string {
	s, _ := u.UserInfo(ctx, "username", "").(string)
	return s
}

// Groups returns the user's groups; it is empty when the claim is missing or not a list.
func (u *UserSession) Groups(ctx context.Context) []string {
	raw, ok := u.UserInfo(ctx, "groups", nil).([]any)
	if !ok {
		return []string{}
	}
	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		if s, ok := g.(string); ok {
			groups = append(groups, s)
		}
	}
	return groups
}

// IDToken returns the verified ID token claims of a valid login.
func (u *UserSession) IDToken(ctx context.Context) domainauth.Claims {
	u.init(ctx)
	return u.idToken
}
