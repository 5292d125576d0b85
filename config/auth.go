package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// NativeMode controls how OIDC identities interact with native site accounts.
type NativeMode string

const (
	// NativeModeYes: native accounts authenticate only through OIDC.
	NativeModeYes NativeMode = "yes"
	// NativeModeOptional: native accounts may use OIDC or the native login page.
	NativeModeOptional NativeMode = "optional"
	// NativeModeNo: OIDC and native logins are independent.
	NativeModeNo NativeMode = "no"
)

// UnmarshalText implements encoding.TextUnmarshaler for NativeMode.
func (m *NativeMode) UnmarshalText(text []byte) error {
	v := NativeMode(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case NativeModeYes, NativeModeOptional, NativeModeNo:
		*m = v
		return nil
	default:
		return fmt.Errorf("invalid NativeMode: %q (valid options: yes, optional, no)", v)
	}
}

// OAuthConfig contains the OIDC client registration.
type OAuthConfig struct {
	// ProviderURL is the issuer or its discovery document URL.
	ProviderURL  string `env:"PROVIDER_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	// AuthMethod is client_secret_post or client_secret_basic.
	AuthMethod string `env:"CLIENT_AUTH_METHOD" envDefault:"client_secret_post"`
	Scopes     string `env:"SCOPES"             envDefault:"openid email profile edumember"`
	// CallbackPath is appended to the public base URL to form the redirect URI.
	CallbackPath string `env:"CALLBACK_PATH" envDefault:"/auth/callback"`
}

// IsConfigured reports whether the required client options are present.
func (o OAuthConfig) IsConfigured() bool {
	return o.ProviderURL != "" && o.ClientID != "" && o.ClientSecret != ""
}

// ScopeList splits Scopes on whitespace.
func (o OAuthConfig) ScopeList() []string {
	return strings.Fields(o.Scopes)
}

// ClaimsConfig maps logical user attributes to userinfo claim names.
type ClaimsConfig struct {
	Username   string `env:"USERNAME"    envDefault:"preferred_username"`
	Email      string `env:"EMAIL"       envDefault:"email"`
	FullName   string `env:"FULL_NAME"   envDefault:"name"`
	GivenName  string `env:"GIVEN_NAME"  envDefault:"given_name"`
	FamilyName string `env:"FAMILY_NAME" envDefault:"family_name"`
	Groups     string `env:"GROUPS"      envDefault:"edumember_ismemberof"`
}

// Map returns the logical-key to claim-name table.
func (c ClaimsConfig) Map() map[string]string {
	return map[string]string{
		"username":    c.Username,
		"email":       c.Email,
		"full_name":   c.FullName,
		"given_name":  c.GivenName,
		"family_name": c.FamilyName,
		"groups":      c.Groups,
	}
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	Username string   `env:"USERNAME" envDefault:"dev-user"`
	Email    string   `env:"EMAIL"    envDefault:"dev@example.com"`
	Groups   []string `env:"GROUPS"   envDefault:"staff"            envSeparator:";"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	OAuth   OAuthConfig   `envPrefix:"OIDC_"`
	Claims  ClaimsConfig  `envPrefix:"OIDC_CLAIM_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// NativeAccounts is use_oidc_for_native_users.
	NativeAccounts NativeMode `env:"USE_OIDC_FOR_NATIVE_USERS" envDefault:"no"`

	// AvailableGroups lists the groups that may appear in access lists.
	AvailableGroups []string `env:"AVAILABLE_GROUPS" envSeparator:","`
}

// Sanitize trims values and fills defaults dropped by empty env vars.
func (a *AuthConfig) Sanitize() {
	a.OAuth.ProviderURL = strings.TrimSpace(a.OAuth.ProviderURL)
	a.OAuth.ClientID = strings.TrimSpace(a.OAuth.ClientID)
	a.OAuth.AuthMethod = strings.TrimSpace(a.OAuth.AuthMethod)
	if a.OAuth.AuthMethod == "" {
		a.OAuth.AuthMethod = "client_secret_post"
	}
	if a.OAuth.CallbackPath == "" {
		a.OAuth.CallbackPath = "/auth/callback"
	}
	if a.NativeAccounts == "" {
		a.NativeAccounts = NativeModeNo
	}
	groups := a.AvailableGroups[:0]
	for _, g := range a.AvailableGroups {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	a.AvailableGroups = groups
}
