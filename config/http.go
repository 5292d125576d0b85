package config

import "strings"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the public home URL of the site (e.g., "https://www.example.edu/news").
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// AdminPath is the path prefix of the admin area.
	AdminPath string `env:"APP_ADMIN_PATH" envDefault:"/admin"`

	// NativeLoginPath is the native account login page.
	NativeLoginPath string `env:"APP_NATIVE_LOGIN_PATH" envDefault:"/login"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to derive it from BaseURL.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// SessionCookieName names the OIDC session id cookie.
	SessionCookieName string `env:"APP_SESSION_COOKIE" envDefault:"oidcgate_session"`

	// NativeCookieKey signs (and, with NativeCookieBlockKey, encrypts) the native login cookie.
	NativeCookieKey      string `env:"APP_NATIVE_COOKIE_KEY"`
	NativeCookieBlockKey string `env:"APP_NATIVE_COOKIE_BLOCK_KEY"`

	// VerifierKey keys the HMAC for login/logout return verifiers.
	VerifierKey string `env:"APP_VERIFIER_KEY"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.BaseURL = strings.TrimRight(strings.TrimSpace(h.BaseURL), "/")
	h.AdminPath = "/" + strings.Trim(strings.TrimSpace(h.AdminPath), "/")
	h.NativeLoginPath = "/" + strings.Trim(strings.TrimSpace(h.NativeLoginPath), "/")
	if h.SessionCookieName == "" {
		h.SessionCookieName = "oidcgate_session"
	}
}
