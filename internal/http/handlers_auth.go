package httpx

import (
	"net/http"

	"github.com/target/oidc-gate/config"
	domainauth "github.com/target/oidc-gate/internal/domain/auth"
	"github.com/target/oidc-gate/internal/service"
)

// AuthFlowRecorder counts login and logout attempts.
type AuthFlowRecorder interface {
	RecordAuthFlow(flow string, err error)
}

// AuthHandlers provides HTTP handlers for the login and logout flows.
type AuthHandlers struct {
	views
	Svc     *service.AuthService
	Metrics AuthFlowRecorder // Optional
}

func (h *AuthHandlers) record(flow string, err error) {
	if h.Metrics != nil {
		h.Metrics.RecordAuthFlow(flow, err)
	}
}

// Login starts the OIDC login.
// GET /auth/login?umich-oidc-return=<url>&umich-oidc-verifier=<mac>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	authURL, err := h.Svc.BeginLogin(r.Context(), rc)
	h.record(FlowLoginBegin, err)
	if err != nil {
		h.fatal(w, rc, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the OIDC login.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	target, err := h.Svc.CompleteLogin(r.Context(), rc, service.CompleteLoginInput{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	h.record(FlowLogin, err)
	if err != nil {
		h.fatal(w, rc, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout ends the OIDC and native logins.
// GET /auth/logout?umich-oidc-return=<url>&umich-oidc-verifier=<mac>.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	target, err := h.Svc.LogoutAndRedirect(r.Context(), rc)
	h.record(FlowLogout, err)
	if err != nil {
		h.fatal(w, rc, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type statusResponse struct {
	AuthCheck    bool                    `json:"auth_check"`
	SessionState domainauth.SessionState `json:"session_state"`
}

// Status answers the login heartbeat.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	loggedIn, state := h.Svc.Status(r.Context(), rc)
	WriteJSON(w, http.StatusOK, statusResponse{AuthCheck: loggedIn, SessionState: state})
}

type nativeLoginData struct {
	Message      string
	OIDCLoginURL string
}

// NativeLogin is the native account login page. When every login goes
// through OIDC it forwards straight to the IdP.
// GET /login?action=<action>&redirect_to=<url>.
func (h *AuthHandlers) NativeLogin(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	action := q.Get("action")

	if action == "logout" {
		err := rc.Logout(ctx)
		h.record(FlowLogout, err)
		if err != nil {
			h.logger().ErrorContext(ctx, "native logout", "error", err)
		}
		http.Redirect(w, r, h.Policy.NativeLoginURL("")+"?loggedout=true", http.StatusFound)
		return
	}

	returnTo := ""
	if dest, ok := h.Policy.ValidateRedirect(q.Get("redirect_to")); ok {
		returnTo = dest
	}
	if rc.Gate.NativeMode == config.NativeModeYes && action != "postpass" {
		http.Redirect(w, r, h.Policy.OIDCURL(ctx, rc, service.KindLogin, returnTo), http.StatusFound)
		return
	}

	data := nativeLoginData{OIDCLoginURL: h.Policy.OIDCURL(ctx, rc, service.KindLogin, returnTo)}
	if q.Get("loggedout") == "true" {
		data.Message = "You are now logged out."
	}
	h.render(w, http.StatusOK, PageNativeLogin, h.page(ctx, rc, "Log in", data))
}
