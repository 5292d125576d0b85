package service

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CookieDomain returns the Domain attribute for session cookies.
//
// An explicit value wins. Otherwise the home URL host is used with any
// leading "www." removed. Hosts that cannot carry a domain cookie (IP
// addresses, single-label names such as localhost, public suffixes) yield
// "" so the cookie stays host-only.
func CookieDomain(configured, homeURL string) string {
	if d := strings.TrimLeft(strings.TrimSpace(configured), "."); d != "" {
		return d
	}
	u, err := url.Parse(homeURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}
	if suffix, _ := publicsuffix.PublicSuffix(host); suffix == host {
		return ""
	}
	return host
}
