package service

import (
	"strings"
	"time"

	"github.com/target/oidc-gate/config"
	"github.com/target/oidc-gate/internal/domain/access"
)

// GateOptions is the read-only settings view shared by every request.
type GateOptions struct {
	// HomeURL is the public site root, without a trailing slash.
	HomeURL         string
	AdminPath       string
	NativeLoginPath string
	CallbackPath    string
	StatusPath      string

	SiteACL         access.ACL
	AvailableGroups []string

	LoginAction     config.ReturnAction
	LoginReturnURL  string
	LogoutAction    config.ReturnAction
	LogoutReturnURL string

	SessionLength time.Duration
	NativeMode    config.NativeMode
	// Claims maps logical keys (username, email, groups, ...) to claim names.
	Claims map[string]string

	AdminEmail string
	// MissingOption names the first required OIDC client option that is unset.
	MissingOption string
}

// GateOptionsFromConfig builds GateOptions from sanitized application config.
func GateOptionsFromConfig(cfg *config.AppConfig) *GateOptions {
	return &GateOptions{
		HomeURL:         strings.TrimRight(cfg.HTTP.BaseURL, "/"),
		AdminPath:       cfg.HTTP.AdminPath,
		NativeLoginPath: cfg.HTTP.NativeLoginPath,
		CallbackPath:    cfg.Auth.OAuth.CallbackPath,
		StatusPath:      "/auth/status",
		SiteACL:         access.FromList(access.Sanitize(cfg.Access.RestrictSite)),
		AvailableGroups: access.AvailableGroups(cfg.Auth.AvailableGroups),
		LoginAction:     cfg.Access.LoginAction,
		LoginReturnURL:  cfg.Access.LoginReturnURL,
		LogoutAction:    cfg.Access.LogoutAction,
		LogoutReturnURL: cfg.Access.LogoutReturnURL,
		SessionLength:   cfg.Access.SessionLength,
		NativeMode:      cfg.Auth.NativeAccounts,
		Claims:          cfg.Auth.Claims.Map(),
		AdminEmail:      cfg.Access.AdminEmail,
		MissingOption:   missingOIDCOption(cfg.Auth),
	}
}

func missingOIDCOption(a config.AuthConfig) string {
	if a.Mode == config.AuthModeMock {
		return ""
	}
	switch {
	case a.OAuth.ProviderURL == "":
		return "provider_url"
	case a.OAuth.ClientID == "":
		return "client_id"
	case a.OAuth.ClientSecret == "":
		return "client_secret"
	}
	return ""
}

// URL joins path onto the home URL.
func (o *GateOptions) URL(path string) string {
	if path == "" {
		return o.HomeURL
	}
	return o.HomeURL + "/" + strings.TrimLeft(path, "/")
}

// AdminURL is the root of the admin area.
func (o *GateOptions) AdminURL() string {
	return o.URL(o.AdminPath)
}

// InAdmin reports whether u points into the admin area.
func (o *GateOptions) InAdmin(u string) bool {
	return hasPathPrefix(u, o.AdminURL())
}

// IsNativeLoginPage reports whether u is the native login page.
func (o *GateOptions) IsNativeLoginPage(u string) bool {
	if hasPathPrefix(u, o.URL(o.NativeLoginPath)) {
		return true
	}
	return strings.TrimRight(u, "/") == o.URL("/login")
}

// ReturnURL returns the configured destination for kind.
func (o *GateOptions) ReturnURL(kind URLKind) string {
	if kind == KindLogout {
		return o.LogoutReturnURL
	}
	return o.LoginReturnURL
}

// Action returns the configured return action for kind.
func (o *GateOptions) Action(kind URLKind) config.ReturnAction {
	if kind == KindLogout {
		return o.LogoutAction
	}
	return o.LoginAction
}

// ClaimName maps a logical key to its claim name; ok is false when the key has no mapping.
func (o *GateOptions) ClaimName(key string) (string, bool) {
	name, ok := o.Claims[key]
	return name, ok
}

// OIDCConfigured reports whether the OIDC client options are complete.
func (o *GateOptions) OIDCConfigured() bool { return o.MissingOption == "" }

// CallbackURL is the redirect URI registered with the IdP.
func (o *GateOptions) CallbackURL() string { return o.URL(o.CallbackPath) }
