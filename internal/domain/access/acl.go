package access

// Package access holds the pure access-decision rules: how a resource's
// access list is encoded, sanitized and evaluated against a user's facts.
// It performs no I/O.

import "strings"

const (
	// SentinelEveryone grants access to anyone, logged in or not.
	SentinelEveryone = "_everyone_"
	// SentinelLoggedIn grants access to any logged-in user.
	SentinelLoggedIn = "_logged_in_"
)

// Kind discriminates the ACL variants.
type Kind int

const (
	// KindEveryone is a public resource.
	KindEveryone Kind = iota
	// KindLoggedIn requires any login.
	KindLoggedIn
	// KindGroups requires membership in at least one listed group.
	KindGroups
)

// ACL is the decoded access list of a site or resource.
// The zero value is Everyone.
type ACL struct {
	kind   Kind
	groups []string
}

// Everyone returns the public ACL.
func Everyone() ACL { return ACL{kind: KindEveryone} }

// LoggedIn returns the ACL that admits any logged-in user.
func LoggedIn() ACL { return ACL{kind: KindLoggedIn} }

// Groups returns an ACL admitting members of any of groups.
// An empty list collapses to Everyone.
func Groups(groups ...string) ACL {
	return FromList(groups)
}

// FromList decodes a stored list. The first element decides the variant:
// a leading sentinel wins, anything else is a group list.
func FromList(list []string) ACL {
	clean := make([]string, 0, len(list))
	for _, g := range list {
		if g = strings.TrimSpace(g); g != "" {
			clean = append(clean, g)
		}
	}
	if len(clean) == 0 {
		return Everyone()
	}
	switch clean[0] {
	case SentinelEveryone:
		return Everyone()
	case SentinelLoggedIn:
		return LoggedIn()
	}
	return ACL{kind: KindGroups, groups: clean}
}

// Parse decodes the comma-separated storage form ("a, b").
func Parse(s string) ACL {
	if strings.TrimSpace(s) == "" {
		return Everyone()
	}
	return FromList(strings.Split(s, ","))
}

// Kind returns the ACL variant.
func (a ACL) Kind() Kind { return a.kind }

// IsEveryone reports whether the ACL is public.
func (a ACL) IsEveryone() bool { return a.kind == KindEveryone }

// GroupNames returns a copy of the required groups (nil for sentinel ACLs).
func (a ACL) GroupNames() []string {
	if a.kind != KindGroups {
		return nil
	}
	out := make([]string, len(a.groups))
	copy(out, a.groups)
	return out
}

// List re-encodes the ACL to its stored list form.
func (a ACL) List() []string {
	switch a.kind {
	case KindLoggedIn:
		return []string{SentinelLoggedIn}
	case KindGroups:
		return a.GroupNames()
	default:
		return []string{SentinelEveryone}
	}
}

// String returns the comma-separated storage form.
func (a ACL) String() string {
	return strings.Join(a.List(), ", ")
}
