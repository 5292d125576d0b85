package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/target/oidc-gate/config"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
)

// URLKind selects a login or logout link.
type URLKind string

const (
	KindLogin  URLKind = "login"
	KindLogout URLKind = "logout"
)

// Query parameters carrying a signed return URL. The names are kept stable
// so links issued by older deployments keep working.
const (
	ParamVerifier = "umich-oidc-verifier"
	ParamReturn   = "umich-oidc-return"
)

var (
	// ErrUnsafeLink means the return URL was missing its verifier or the verifier did not match.
	ErrUnsafeLink = errors.New("unsafe login/logout link")
	// ErrBadDestination means the return URL is not a safe same-site redirect.
	ErrBadDestination = errors.New("bad login/logout destination URL")
)

// RedirectPolicyOptions groups dependencies for RedirectPolicy.
type RedirectPolicyOptions struct {
	Gate     *GateOptions
	Verifier *Verifier
	Logger   *slog.Logger
}

// RedirectPolicy decides where visitors go after login and logout and
// protects those destinations in transit.
type RedirectPolicy struct {
	gate     *GateOptions
	verifier *Verifier
	logger   *slog.Logger
	hosts    map[string]struct{}
}

// NewRedirectPolicy constructs a RedirectPolicy.
func NewRedirectPolicy(opts RedirectPolicyOptions) *RedirectPolicy {
	if opts.Gate == nil || opts.Verifier == nil {
		panic("NewRedirectPolicy: Gate and Verifier are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &RedirectPolicy{gate: opts.Gate, verifier: opts.Verifier, logger: logger, hosts: map[string]struct{}{}}
	for _, u := range []string{opts.Gate.HomeURL, opts.Gate.LoginReturnURL, opts.Gate.LogoutReturnURL} {
		if parsed, err := url.Parse(u); err == nil && parsed.Hostname() != "" {
			p.hosts[strings.ToLower(parsed.Hostname())] = struct{}{}
		}
	}
	return p
}

// OIDCURL returns the login or logout link for the current request.
// returnTo is "" (use the configured action), an action name, or a URL.
func (p *RedirectPolicy) OIDCURL(ctx context.Context, rc *RequestContext, kind URLKind, returnTo string) string {
	if kind != KindLogin && kind != KindLogout {
		p.logger.ErrorContext(ctx, "oidc url: unknown kind", "kind", string(kind))
		return ""
	}

	target := returnTo
	if target == "" {
		target = string(p.gate.Action(kind))
		if target == "" {
			target = string(config.ActionSetting)
			if kind == KindLogout {
				target = string(config.ActionSmart)
			}
		}
	}

	if target == string(config.ActionSmart) {
		target = string(config.ActionSetting)
		if kind == KindLogout && rc.PublicResource() && !p.gate.InAdmin(p.CurrentURL(rc.Request)) {
			target = string(config.ActionHere)
		}
	}

	if target == string(config.ActionSetting) {
		target = p.gate.ReturnURL(kind)
		if target == "" {
			target = p.gate.HomeURL
			if kind == KindLogin {
				target = string(config.ActionHere)
			}
		}
	}

	var returnURL string
	switch target {
	case string(config.ActionHere):
		returnURL = p.CurrentURL(rc.Request)
	case string(config.ActionHome):
		returnURL = p.gate.HomeURL
	default:
		returnURL = target
	}
	if returnURL == "" {
		returnURL = p.gate.HomeURL
	}
	if p.gate.NativeMode == config.NativeModeYes && kind == KindLogout && p.gate.InAdmin(returnURL) {
		// The admin area would log the user straight back in.
		returnURL = p.gate.HomeURL
	}
	if p.gate.NativeMode != config.NativeModeNo && p.gate.IsNativeLoginPage(returnURL) {
		// Avoid an authentication loop.
		returnURL = p.gate.HomeURL
	}
	p.logger.DebugContext(ctx, "oidc url", "kind", string(kind), "return_url", returnURL)

	endpoint := p.gate.URL("/auth/" + string(kind))
	if target == string(config.ActionHome) {
		return endpoint
	}
	verifier, err := p.verifier.Create(ctx, returnURL)
	if err != nil {
		p.logger.ErrorContext(ctx, "oidc url: create verifier", "error", err)
		return endpoint
	}
	q := url.Values{}
	q.Set(ParamVerifier, verifier)
	q.Set(ParamReturn, returnURL)
	return endpoint + "?" + q.Encode()
}

// CheckReturnURL validates the signed return URL on a login or logout
// request. Without one, the home URL is returned.
func (p *RedirectPolicy) CheckReturnURL(ctx context.Context, r *http.Request) (string, error) {
	q := r.URL.Query()
	if !q.Has(ParamReturn) {
		return p.gate.HomeURL, nil
	}
	if !q.Has(ParamVerifier) {
		return "", fmt.Errorf("%w (missing nonce)", ErrUnsafeLink)
	}
	returnURL := q.Get(ParamReturn)
	ok, err := p.verifier.Check(ctx, q.Get(ParamVerifier), returnURL)
	if err != nil {
		return "", fmt.Errorf("check verifier: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w (incorrect nonce)", ErrUnsafeLink)
	}
	safe, valid := p.ValidateRedirect(returnURL)
	if !valid {
		return "", fmt.Errorf("%w: %s", ErrBadDestination, returnURL)
	}
	return safe, nil
}

// ValidateRedirect returns raw as an absolute URL when it is a safe
// redirect target: a rooted path, or an http(s) URL on an allowed host.
func (p *RedirectPolicy) ValidateRedirect(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "\\\x00\r\n\t") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" && u.Host == "" {
		if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
			return "", false
		}
		home, err := url.Parse(p.gate.HomeURL)
		if err != nil {
			return "", false
		}
		return home.Scheme + "://" + home.Host + raw, true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.User != nil {
		return "", false
	}
	if _, ok := p.hosts[strings.ToLower(u.Hostname())]; !ok {
		return "", false
	}
	return raw, true
}

// CurrentURL rebuilds the public URL of r from the home URL. A path prefix
// shared with the home URL is not repeated.
func (p *RedirectPolicy) CurrentURL(r *http.Request) string {
	if r == nil {
		return p.gate.HomeURL
	}
	uri := r.RequestURI
	if uri == "" {
		uri = r.URL.RequestURI()
	}
	if home, err := url.Parse(p.gate.HomeURL); err == nil {
		if prefix := "/" + strings.Trim(home.Path, "/"); prefix != "/" && hasPathPrefixFold(uri, prefix) {
			uri = uri[len(prefix):]
		}
	}
	return p.gate.URL("/" + strings.TrimLeft(uri, "/"))
}

func hasPathPrefixFold(uri, prefix string) bool {
	if len(uri) < len(prefix) || !strings.EqualFold(uri[:len(prefix)], prefix) {
		return false
	}
	return atPathBoundary(uri[len(prefix):])
}

// hasPathPrefix matches prefix only as whole path segments: "/admin" covers
// "/admin/x" and "/admin?x" but not "/administration".
func hasPathPrefix(uri, prefix string) bool {
	rest, ok := strings.CutPrefix(uri, prefix)
	return ok && atPathBoundary(rest)
}

func atPathBoundary(rest string) bool {
	if rest == "" {
		return true
	}
	switch rest[0] {
	case '/', '?', '#':
		return true
	}
	return false
}

// NativeLoginURL is the native login page, returning to redirectTo.
func (p *RedirectPolicy) NativeLoginURL(redirectTo string) string {
	u := p.gate.URL(p.gate.NativeLoginPath)
	if redirectTo == "" {
		return u
	}
	return u + "?redirect_to=" + url.QueryEscape(redirectTo)
}

// NativeLogoutURL is the native logout action.
func (p *RedirectPolicy) NativeLogoutURL() string {
	return p.gate.URL(p.gate.NativeLoginPath) + "?action=logout"
}

// LoginURL picks the login link shown to the visitor.
func (p *RedirectPolicy) LoginURL(ctx context.Context, rc *RequestContext) string {
	if p.gate.NativeMode == config.NativeModeYes {
		return p.OIDCURL(ctx, rc, KindLogin, "")
	}
	if !p.gate.InAdmin(p.CurrentURL(rc.Request)) && rc.User.State(ctx) != domainauth.StateNone {
		return p.OIDCURL(ctx, rc, KindLogin, "")
	}
	return p.NativeLoginURL(p.CurrentURL(rc.Request))
}

// LogoutURL picks the logout link shown to the visitor.
func (p *RedirectPolicy) LogoutURL(ctx context.Context, rc *RequestContext) string {
	if p.gate.NativeMode == config.NativeModeYes || rc.User.State(ctx) != domainauth.StateNone {
		return p.OIDCURL(ctx, rc, KindLogout, "")
	}
	if p.gate.InAdmin(p.CurrentURL(rc.Request)) {
		return p.NativeLogoutURL()
	}
	return p.OIDCURL(ctx, rc, KindLogout, "")
}

// DenialRedirect is where an interactive visitor who is not logged in is sent.
func (p *RedirectPolicy) DenialRedirect(ctx context.Context, rc *RequestContext) string {
	switch p.gate.NativeMode {
	case config.NativeModeYes:
		return p.OIDCURL(ctx, rc, KindLogin, "")
	case config.NativeModeOptional:
		return p.NativeLoginURL(p.CurrentURL(rc.Request))
	default:
		current := p.CurrentURL(rc.Request)
		if p.gate.InAdmin(current) {
			return p.NativeLoginURL(current)
		}
		return p.OIDCURL(ctx, rc, KindLogin, "")
	}
}
