package config

import (
	"strings"
	"time"
)

// ReturnAction selects where the browser lands after login or logout.
type ReturnAction string

const (
	// ActionSetting uses the configured return URL.
	ActionSetting ReturnAction = "setting"
	// ActionHere returns to the page the link was rendered on.
	ActionHere ReturnAction = "here"
	// ActionHome returns to the site home.
	ActionHome ReturnAction = "home"
	// ActionSmart behaves like here on public pages and setting elsewhere (logout only).
	ActionSmart ReturnAction = "smart"
)

// Valid reports whether the action is one of the known values.
func (a ReturnAction) Valid() bool {
	switch a {
	case ActionSetting, ActionHere, ActionHome, ActionSmart:
		return true
	default:
		return false
	}
}

// AccessConfig holds the site-wide access list and session/redirect settings.
type AccessConfig struct {
	// RestrictSite is the site-wide access list.
	RestrictSite []string `env:"RESTRICT_SITE" envDefault:"_everyone_" envSeparator:","`

	LoginAction     ReturnAction `env:"LOGIN_ACTION"      envDefault:"setting"`
	LoginReturnURL  string       `env:"LOGIN_RETURN_URL"`
	LogoutAction    ReturnAction `env:"LOGOUT_ACTION"     envDefault:"smart"`
	LogoutReturnURL string       `env:"LOGOUT_RETURN_URL"`

	// SessionLength bounds how long an OIDC login stays valid after the ID token was issued.
	SessionLength time.Duration `env:"SESSION_LENGTH" envDefault:"24h"`

	// AdminEmail is shown on fatal error pages when set.
	AdminEmail string `env:"ADMIN_EMAIL"`
}

// Sanitize trims values and restores defaults for empty inputs.
func (a *AccessConfig) Sanitize() {
	site := a.RestrictSite[:0]
	for _, g := range a.RestrictSite {
		if g = strings.TrimSpace(g); g != "" {
			site = append(site, g)
		}
	}
	a.RestrictSite = site
	if len(a.RestrictSite) == 0 {
		a.RestrictSite = []string{"_everyone_"}
	}
	a.LoginAction = ReturnAction(strings.ToLower(strings.TrimSpace(string(a.LoginAction))))
	a.LogoutAction = ReturnAction(strings.ToLower(strings.TrimSpace(string(a.LogoutAction))))
	a.LoginReturnURL = strings.TrimSpace(a.LoginReturnURL)
	a.LogoutReturnURL = strings.TrimSpace(a.LogoutReturnURL)
}
