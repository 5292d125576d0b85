package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/oidc-gate/internal/service"
)

// pageData is the data every page template receives.
type pageData struct {
	Title     string
	HomeURL   string
	Query     string
	LoggedIn  bool
	Username  string
	LoginURL  string
	LogoutURL string
	Data      any
}

type forbiddenData struct {
	ShowBack bool
	MainURL  string
}

type fatalData struct {
	Header     string
	Details    string
	RetryURL   string
	AdminEmail string
}

// views renders the HTML pages shared by the page and auth handlers.
type views struct {
	T      *TemplateRenderer
	Policy *service.RedirectPolicy
	Logger *slog.Logger
}

func (v *views) logger() *slog.Logger {
	if v != nil && v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// page builds the template data for rc. Call it after every access check
// for the request has run: the logout link depends on whether the
// request touched restricted content.
func (v *views) page(ctx context.Context, rc *service.RequestContext, title string, data any) pageData {
	pd := pageData{
		Title:   title,
		HomeURL: rc.Gate.HomeURL,
		Query:   rc.Request.URL.Query().Get("q"),
		Data:    data,
	}
	if rc.User.LoggedIn(ctx) {
		pd.LoggedIn = true
		pd.Username = rc.User.Username(ctx)
	} else if nu := rc.NativeUser(ctx); nu != nil {
		pd.LoggedIn = true
		pd.Username = nu.Login
	}
	if pd.LoggedIn {
		pd.LogoutURL = v.Policy.LogoutURL(ctx, rc)
	} else {
		pd.LoginURL = v.Policy.LoginURL(ctx, rc)
	}
	return pd
}

func (v *views) render(w http.ResponseWriter, status int, name string, pd pageData) {
	if err := v.T.Render(w, status, name, pd); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// deny answers an interactive request that failed an access check.
func (v *views) deny(w http.ResponseWriter, rc *service.RequestContext, notLoggedIn bool) {
	ctx := rc.Request.Context()
	if notLoggedIn {
		target := v.Policy.DenialRedirect(ctx, rc)
		v.logger().DebugContext(ctx, "denial redirect", "target", target)
		http.Redirect(w, rc.Request, target, http.StatusFound)
		return
	}
	data := forbiddenData{ShowBack: rc.Gate.SiteACL.IsEveryone(), MainURL: rc.Gate.HomeURL}
	v.render(w, http.StatusForbidden, PageForbidden, v.page(ctx, rc, "Permission Denied", data))
}

func (v *views) notFound(w http.ResponseWriter, rc *service.RequestContext) {
	ctx := rc.Request.Context()
	v.render(w, http.StatusNotFound, PageNotFound, v.page(ctx, rc, "Not Found", nil))
}

// fatal renders the error page that ends a failed login or logout.
func (v *views) fatal(w http.ResponseWriter, rc *service.RequestContext, err error) {
	ctx := rc.Request.Context()
	var fe *service.FatalError
	if !errors.As(err, &fe) {
		fe = &service.FatalError{Header: "Login failed", Details: "An unexpected error occurred.", Err: err}
	}
	v.logger().ErrorContext(ctx, "auth flow failed",
		"header", fe.Header,
		"details", fe.Details,
		"error", fe.Err)
	data := fatalData{
		Header:     fe.Header,
		Details:    fe.Details,
		RetryURL:   v.Policy.OIDCURL(ctx, rc, service.KindLogin, ""),
		AdminEmail: rc.Gate.AdminEmail,
	}
	v.render(w, http.StatusInternalServerError, PageFatal, v.page(ctx, rc, fe.Header, data))
}
