package access

// Decision is the outcome of an access check.
type Decision int

const (
	// Allowed grants access.
	Allowed Decision = iota
	// DeniedNotLoggedIn means logging in might grant access.
	DeniedNotLoggedIn
	// DeniedNotInGroups means the user is logged in but lacks membership.
	DeniedNotInGroups
)

// String returns the snake_case label used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedNotLoggedIn:
		return "denied_not_logged_in"
	case DeniedNotInGroups:
		return "denied_not_in_groups"
	default:
		return "unknown"
	}
}

// Facts describes the requesting user at decision time.
type Facts struct {
	// OIDCLoggedIn is true when the OIDC session state is valid.
	OIDCLoggedIn bool
	// NativeLoggedIn is true when a native site account is logged in.
	NativeLoggedIn bool
	// SuperAdmin bypasses every ACL.
	SuperAdmin bool
	// Groups are the user's OIDC groups.
	Groups []string
}

// Verdict is the result of Check.
type Verdict struct {
	Decision Decision
	// NonPublic is set whenever the ACL was not Everyone, regardless of the
	// decision. Callers use it to classify the current request.
	NonPublic bool
}

// Allowed reports whether the verdict grants access.
func (v Verdict) Allowed() bool { return v.Decision == Allowed }

// Check evaluates acl against facts.
//
// Only an OIDC login satisfies a group ACL: a native-only login passes
// LoggedIn ACLs but is treated as not logged in for group checks.
func Check(acl ACL, f Facts) Verdict {
	if acl.IsEveryone() {
		return Verdict{Decision: Allowed}
	}

	v := Verdict{NonPublic: true}
	switch {
	case f.SuperAdmin:
		v.Decision = Allowed
	case acl.kind == KindLoggedIn && (f.OIDCLoggedIn || f.NativeLoggedIn):
		v.Decision = Allowed
	case !f.OIDCLoggedIn:
		v.Decision = DeniedNotLoggedIn
	case intersects(acl.groups, f.Groups):
		v.Decision = Allowed
	default:
		v.Decision = DeniedNotInGroups
	}
	return v
}

func intersects(required, have []string) bool {
	if len(required) == 0 || len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, g := range have {
		set[g] = struct{}{}
	}
	for _, g := range required {
		if _, ok := set[g]; ok {
			return true
		}
	}
	return false
}
