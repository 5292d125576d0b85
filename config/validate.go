package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/target/oidc-gate/internal/domain/access"
)

// scopeToken matches one RFC 6749 scope-token.
var scopeToken = regexp.MustCompile(`^[\x21\x23-\x5b\x5d-\x7e]+$`)

// Validate reports every configuration problem at once.
func (c *AppConfig) Validate() error {
	var result *multierror.Error

	if err := validateScopes(c.Auth.OAuth.Scopes); err != nil {
		result = multierror.Append(result, err)
	}
	switch c.Auth.OAuth.AuthMethod {
	case "client_secret_post", "client_secret_basic":
	default:
		result = multierror.Append(result,
			fmt.Errorf("OIDC_CLIENT_AUTH_METHOD: unsupported value %q", c.Auth.OAuth.AuthMethod))
	}
	if c.Auth.OAuth.ProviderURL != "" {
		if err := validateAbsoluteURL(c.Auth.OAuth.ProviderURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("OIDC_PROVIDER_URL: %w", err))
		}
	}

	available := access.AvailableGroups(c.Auth.AvailableGroups)
	if _, err := access.ValidateChoices(c.Access.RestrictSite, available); err != nil {
		result = multierror.Append(result, fmt.Errorf("RESTRICT_SITE: %w", err))
	}

	if !c.Access.LoginAction.Valid() || c.Access.LoginAction == ActionSmart {
		result = multierror.Append(result, fmt.Errorf("LOGIN_ACTION: unsupported value %q", c.Access.LoginAction))
	}
	if !c.Access.LogoutAction.Valid() {
		result = multierror.Append(result, fmt.Errorf("LOGOUT_ACTION: unsupported value %q", c.Access.LogoutAction))
	}
	for name, v := range map[string]string{
		"LOGIN_RETURN_URL":  c.Access.LoginReturnURL,
		"LOGOUT_RETURN_URL": c.Access.LogoutReturnURL,
	} {
		if err := validateReturnURL(v); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Access.SessionLength <= 0 {
		result = multierror.Append(result, fmt.Errorf("SESSION_LENGTH: must be positive"))
	}

	if err := validateAbsoluteURL(c.HTTP.BaseURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("APP_BASE_URL: %w", err))
	}
	if !c.IsDev && c.Auth.Mode == AuthModeMock {
		result = multierror.Append(result, fmt.Errorf("AUTH_MODE: mock is only allowed in development"))
	}

	return result.ErrorOrNil()
}

func validateScopes(scopes string) error {
	fields := strings.Fields(scopes)
	if !slices.Contains(fields, "openid") {
		return fmt.Errorf("OIDC_SCOPES: must include \"openid\"")
	}
	for _, s := range fields {
		if !scopeToken.MatchString(s) {
			return fmt.Errorf("OIDC_SCOPES: invalid characters in %q", s)
		}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// validateReturnURL accepts empty, site-relative paths and https URLs.
func validateReturnURL(raw string) error {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("must be a site path or an https URL")
	}
	return nil
}
