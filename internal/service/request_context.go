package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/target/oidc-gate/internal/domain/access"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// RequestContext is the per-request state shared by every gate and handler.
// It replaces ambient globals: each component receives it explicitly.
type RequestContext struct {
	Request *http.Request
	Gate    *GateOptions
	Session *SessionHandle
	User    *UserSession
	AJAX    bool

	w       http.ResponseWriter
	native  ports.NativeSessions
	users   ports.NativeUserRepository
	logger  *slog.Logger
	session time.Duration

	nativeLoaded bool
	nativeUser   *domainauth.NativeUser

	nonPublic   bool
	siteVerdict *access.Verdict
}

// RequestScopeOptions groups dependencies for RequestScope.
type RequestScopeOptions struct {
	Gate   *GateOptions
	Stores RequestStores
	Cookie SessionCookie
	Logger *slog.Logger
	Now    func() time.Time
}

// RequestStores are the backing stores a RequestContext reads from.
type RequestStores struct {
	Sessions ports.SessionStore
	Native   ports.NativeSessions
	Users    ports.NativeUserRepository
}

// RequestScope builds RequestContexts.
type RequestScope struct {
	gate   *GateOptions
	stores RequestStores
	cookie SessionCookie
	logger *slog.Logger
	now    func() time.Time
}

// NewRequestScope constructs a RequestScope.
func NewRequestScope(opts RequestScopeOptions) *RequestScope {
	if opts.Gate == nil {
		panic("NewRequestScope: Gate is required")
	}
	if opts.Stores.Sessions == nil {
		panic("NewRequestScope: Stores.Sessions is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &RequestScope{gate: opts.Gate, stores: opts.Stores, cookie: opts.Cookie, logger: logger, now: now}
}

// Begin creates the RequestContext for one request.
func (s *RequestScope) Begin(w http.ResponseWriter, r *http.Request) *RequestContext {
	rc := &RequestContext{
		Request: r,
		Gate:    s.gate,
		Session: NewSessionHandle(s.stores.Sessions, s.cookie, w, r),
		AJAX:    IsAJAX(r, s.gate.StatusPath),
		w:       w,
		native:  s.stores.Native,
		users:   s.stores.Users,
		logger:  s.logger,
		session: s.gate.SessionLength,
	}
	rc.User = NewUserSession(UserSessionOptions{
		Session: rc.Session,
		Gate:    s.gate,
		Runtime: UserSessionRuntime{
			AJAX:     rc.AJAX,
			OnExpire: rc.Logout,
			Now:      s.now,
			Logger:   s.logger,
		},
	})
	return rc
}

// IsAJAX classifies background requests that must not consume an expired session.
func IsAJAX(r *http.Request, statusPath string) bool {
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return statusPath != "" && r.URL.Path == statusPath
}

// PublicResource reports whether every access check so far was against a
// public ACL.
func (rc *RequestContext) PublicResource() bool { return !rc.nonPublic }

// MarkNonPublic classifies the request as touching restricted content.
func (rc *RequestContext) MarkNonPublic() { rc.nonPublic = true }

// NativeUser returns the logged-in native account, if any.
func (rc *RequestContext) NativeUser(ctx context.Context) *domainauth.NativeUser {
	if rc.nativeLoaded {
		return rc.nativeUser
	}
	rc.nativeLoaded = true
	if rc.native == nil || rc.users == nil {
		return nil
	}
	login, ok := rc.native.Current(rc.Request)
	if !ok {
		return nil
	}
	u, err := rc.users.GetByLogin(ctx, login)
	if err != nil {
		rc.logger.WarnContext(ctx, "native login cookie without account", "login", login, "error", err)
		return nil
	}
	rc.nativeUser = u
	return u
}

// Facts gathers the decision inputs for the current visitor.
func (rc *RequestContext) Facts(ctx context.Context) access.Facts {
	// Resolve the OIDC login first: an expired session also logs out the native account.
	oidcLoggedIn := rc.User.LoggedIn(ctx)
	nu := rc.NativeUser(ctx)
	return access.Facts{
		OIDCLoggedIn:   oidcLoggedIn,
		NativeLoggedIn: nu != nil,
		SuperAdmin:     nu != nil && nu.SuperAdmin,
		Groups:         rc.User.Groups(ctx),
	}
}

// LoginNative issues the native login cookie for login, bounded by the session length.
func (rc *RequestContext) LoginNative(ctx context.Context, u *domainauth.NativeUser) error {
	if rc.native == nil {
		return errors.New("native sessions not configured")
	}
	if err := rc.native.Login(rc.w, rc.Request, u.Login, rc.session); err != nil {
		return err
	}
	rc.nativeLoaded = true
	rc.nativeUser = u
	return nil
}

// Logout clears the OIDC session and the native login cookie.
func (rc *RequestContext) Logout(ctx context.Context) error {
	var errs []error
	if err := rc.Session.ClearAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if rc.native != nil {
		if _, ok := rc.native.Current(rc.Request); ok || rc.nativeUser != nil {
			if err := rc.native.Logout(rc.w, rc.Request); err != nil {
				errs = append(errs, err)
			}
		}
	}
	rc.nativeLoaded = true
	rc.nativeUser = nil
	rc.siteVerdict = nil
	rc.User.forget()
	return errors.Join(errs...)
}

type requestContextKey struct{}

// WithRequestContext stores rc in ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the RequestContext stored in ctx.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}
