package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/target/oidc-gate/config"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/ports"
)

// FatalError ends a login or logout request with an error page.
type FatalError struct {
	// Header is a short, non-technical summary.
	Header string
	// Details carries the technical message shown under the header.
	Details string
	Err     error
}

func (e *FatalError) Error() string { return e.Header + ": " + e.Details }

func (e *FatalError) Unwrap() error { return e.Err }

// ErrorClass labels auth flow metrics with the header, so each failure page
// counts separately.
func (e *FatalError) ErrorClass() string { return e.Header }

func fatal(header string, err error) *FatalError {
	return &FatalError{Header: header, Details: sentence(err.Error()), Err: err}
}

// sentence capitalizes msg and terminates it with a period.
func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	r := []rune(msg)
	r[0] = unicode.ToUpper(r[0])
	out := string(r)
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider         // Required
	Policy   *RedirectPolicy            // Required
	Users    ports.NativeUserRepository // Optional: needed when native linking is on
	Logger   *slog.Logger               // Optional
}

// AuthService orchestrates the OIDC login and logout flows.
type AuthService struct {
	provider ports.AuthProvider
	policy   *RedirectPolicy
	users    ports.NativeUserRepository
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Provider == nil || opts.Policy == nil {
		panic("NewAuthService: Provider and Policy are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{provider: opts.Provider, policy: opts.Policy, users: opts.Users, logger: logger}
}

// BeginLogin validates any signed return URL, records the pending login in
// the session, and returns the IdP authorization URL.
func (s *AuthService) BeginLogin(ctx context.Context, rc *RequestContext) (string, error) {
	if !rc.Gate.OIDCConfigured() {
		details := fmt.Sprintf("Login needs to be configured by the website owner. Required option %s is missing.",
			rc.Gate.MissingOption)
		return "", &FatalError{Header: "Login failed (configuration)", Details: details}
	}

	values := map[string]string{}
	if rc.Request.URL.Query().Has(ParamReturn) {
		returnURL, err := s.policy.CheckReturnURL(ctx, rc.Request)
		if err != nil {
			return "", s.fatalWithLogout(ctx, rc, "Login failed (setup)", err)
		}
		values[domainauth.KeyReturnURL] = returnURL
		s.logger.DebugContext(ctx, "return URL set in session", "return_url", returnURL)
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: rc.Gate.CallbackURL()})
	if err != nil {
		return "", fatal("Login failed (setup)", err)
	}
	values[domainauth.KeyOAuthState] = state
	values[domainauth.KeyOAuthNonce] = nonce
	if err := rc.Session.SetMany(ctx, values); err != nil {
		return "", fatal("Login failed (setup)", err)
	}
	return authURL, nil
}

// CompleteLoginInput groups the callback parameters.
type CompleteLoginInput struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CompleteLogin finishes the OIDC login and returns where to send the user.
// When native linking is enabled it also logs in the matching native account.
func (s *AuthService) CompleteLogin(ctx context.Context, rc *RequestContext, in CompleteLoginInput) (string, error) {
	if in.Error != "" {
		return "", &FatalError{Header: "Login failed", Details: sentence(strings.TrimSpace(in.Error + ": " + in.ErrorDescription))}
	}

	expectedState, err := rc.Session.Get(ctx, domainauth.KeyOAuthState)
	if err != nil {
		return "", fatal("Login failed", err)
	}
	nonce, err := rc.Session.Get(ctx, domainauth.KeyOAuthNonce)
	if err != nil {
		return "", fatal("Login failed", err)
	}
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(expectedState), []byte(in.State)) != 1 {
		return "", fatal("Login failed", errors.New("state mismatch"))
	}
	if err := rc.Session.Clear(ctx, domainauth.KeyOAuthState, domainauth.KeyOAuthNonce); err != nil {
		s.logger.WarnContext(ctx, "clear oauth state", "error", err)
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:        in.Code,
		State:       in.State,
		Nonce:       nonce,
		RedirectURL: rc.Gate.CallbackURL(),
	})
	if err != nil {
		return "", fatal("Login failed", err)
	}

	idToken, err := json.Marshal(identity.IDToken)
	if err != nil {
		return "", fatal("Login failed (userinfo)", err)
	}
	userinfo, err := json.Marshal(identity.UserInfo)
	if err != nil {
		return "", fatal("Login failed (userinfo)", err)
	}
	if err := rc.Session.SetMany(ctx, map[string]string{
		domainauth.KeyState:    string(domainauth.StateValid),
		domainauth.KeyIDToken:  string(idToken),
		domainauth.KeyUserInfo: string(userinfo),
	}); err != nil {
		return "", fatal("Login failed", err)
	}

	returnURL, _ := rc.Session.Get(ctx, domainauth.KeyReturnURL)
	if returnURL == "" {
		s.logger.DebugContext(ctx, "no return URL in session")
		returnURL = rc.Gate.HomeURL
	}
	if err := rc.Session.Clear(ctx, domainauth.KeyReturnURL); err != nil {
		s.logger.WarnContext(ctx, "clear return URL", "error", err)
	}

	username, err := usernameFrom(rc.Gate, identity.UserInfo)
	if err != nil {
		return "", s.fatalWithLogout(ctx, rc, "Login failed (userinfo)", err)
	}
	s.logger.InfoContext(ctx, "logged in", "username", username)

	if rc.Gate.NativeMode == config.NativeModeNo || s.users == nil {
		return returnURL, nil
	}

	user, err := s.users.GetByLogin(ctx, username)
	if errors.Is(err, domainauth.ErrNoSuchUser) {
		s.logger.InfoContext(ctx, "no native account, treating as OIDC-only user", "username", username)
		if rc.Gate.InAdmin(returnURL) {
			return "", &FatalError{Header: "Access denied", Details: "No such native user.", Err: err}
		}
		return returnURL, nil
	}
	if err != nil {
		return "", s.fatalWithLogout(ctx, rc, "Native user issue", err)
	}
	if err := rc.LoginNative(ctx, user); err != nil {
		return "", s.fatalWithLogout(ctx, rc, "Native user issue", err)
	}
	return returnURL, nil
}

func usernameFrom(gate *GateOptions, userinfo domainauth.Claims) (string, error) {
	claim, _ := gate.ClaimName("username")
	v, ok := userinfo[claim]
	if claim == "" || !ok {
		return "", errors.New(`OIDC claim mapping for "username" not present in userinfo`)
	}
	username, ok := v.(string)
	if !ok || username == "" {
		return "", errors.New("unable to determine username")
	}
	return username, nil
}

// Logout clears the OIDC session and the native login.
func (s *AuthService) Logout(ctx context.Context, rc *RequestContext) error {
	s.logger.DebugContext(ctx, "logging out")
	if err := rc.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// LogoutAndRedirect validates the signed return URL, logs out, and returns
// the destination.
func (s *AuthService) LogoutAndRedirect(ctx context.Context, rc *RequestContext) (string, error) {
	returnURL, err := s.policy.CheckReturnURL(ctx, rc.Request)
	if err != nil {
		return "", s.fatalWithLogout(ctx, rc, "Logout failed.", err)
	}
	if err := s.Logout(ctx, rc); err != nil {
		s.logger.ErrorContext(ctx, "logout", "error", err)
	}
	s.logger.InfoContext(ctx, "logout complete", "return_url", returnURL)
	return returnURL, nil
}

// fatalWithLogout logs the user out before failing, so no half-authenticated
// state survives an integrity failure.
func (s *AuthService) fatalWithLogout(ctx context.Context, rc *RequestContext, header string, cause error) *FatalError {
	if err := s.Logout(ctx, rc); err != nil {
		s.logger.ErrorContext(ctx, "logout after failure", "error", err)
	}
	return fatal(header, cause)
}

// Status answers the heartbeat: whether the visitor is still logged in
// natively or through a valid OIDC session.
func (s *AuthService) Status(ctx context.Context, rc *RequestContext) (bool, domainauth.SessionState) {
	state := rc.User.State(ctx)
	if rc.NativeUser(ctx) != nil {
		return true, state
	}
	return state == domainauth.StateValid, state
}
