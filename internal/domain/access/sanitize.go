package access

import (
	"slices"
	"strings"

	apperrors "github.com/target/oidc-gate/internal/errors"
)

// Sanitize normalizes a per-resource group selection before it is stored.
// Sentinels only survive on their own: _everyone_ is dropped when anything
// else was picked, then _logged_in_ is dropped when concrete groups remain.
func Sanitize(list []string) []string {
	out := make([]string, 0, len(list))
	for _, g := range list {
		if g = strings.TrimSpace(g); g != "" && !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	if len(out) > 1 {
		out = slices.DeleteFunc(out, func(g string) bool { return g == SentinelEveryone })
	}
	if len(out) > 1 {
		out = slices.DeleteFunc(out, func(g string) bool { return g == SentinelLoggedIn })
	}
	return out
}

// ValidateChoices checks an admin-set ACL (such as the site-wide setting)
// against the selectable groups. Unlike Sanitize it rejects bad input
// instead of repairing it.
func ValidateChoices(list []string, available []string) ([]string, error) {
	out := make([]string, 0, len(list))
	for _, g := range list {
		if g = strings.TrimSpace(g); g != "" && !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return nil, apperrors.ValidationField("groups", "must select at least one group")
	}
	if len(out) > 1 {
		for _, g := range out {
			if g == SentinelEveryone || g == SentinelLoggedIn {
				return nil, apperrors.ValidationField("groups",
					"\"Everyone\" and \"Logged-in Users\" cannot be combined with other groups")
			}
		}
	}
	for _, g := range out {
		if !slices.Contains(available, g) {
			return nil, apperrors.ValidationField("groups", "unknown group: "+g)
		}
	}
	return out, nil
}

// AvailableGroups returns the selectable choices: both sentinels followed
// by the configured groups in order, without duplicates.
func AvailableGroups(configured []string) []string {
	out := []string{SentinelEveryone, SentinelLoggedIn}
	for _, g := range configured {
		if g = strings.TrimSpace(g); g != "" && !slices.Contains(out, g) {
			out = append(out, g)
		}
	}
	return out
}

// Label returns the human-readable name of a group choice.
func Label(group string) string {
	switch group {
	case SentinelEveryone:
		return "Everyone"
	case SentinelLoggedIn:
		return "Logged-in Users"
	default:
		return group
	}
}
