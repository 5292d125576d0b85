package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	anonymous := Facts{}
	oidcStaff := Facts{OIDCLoggedIn: true, Groups: []string{"staff"}}
	oidcNoGroups := Facts{OIDCLoggedIn: true}
	nativeOnly := Facts{NativeLoggedIn: true, Groups: []string{"staff"}}
	admin := Facts{SuperAdmin: true}

	tests := []struct {
		name      string
		acl       ACL
		facts     Facts
		want      Decision
		nonPublic bool
	}{
		{"empty acl allows anonymous", FromList(nil), anonymous, Allowed, false},
		{"everyone allows anonymous", Everyone(), anonymous, Allowed, false},
		{"super admin passes groups", Groups("faculty"), admin, Allowed, true},
		{"logged in acl with oidc", LoggedIn(), oidcNoGroups, Allowed, true},
		{"logged in acl with native", LoggedIn(), nativeOnly, Allowed, true},
		{"logged in acl anonymous", LoggedIn(), anonymous, DeniedNotLoggedIn, true},
		{"groups anonymous", Groups("staff"), anonymous, DeniedNotLoggedIn, true},
		{"groups native only is not logged in", Groups("staff"), nativeOnly, DeniedNotLoggedIn, true},
		{"groups intersect", Groups("faculty", "staff"), oidcStaff, Allowed, true},
		{"groups disjoint", Groups("faculty"), oidcStaff, DeniedNotInGroups, true},
		{"groups with no user groups", Groups("faculty"), oidcNoGroups, DeniedNotInGroups, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Check(tt.acl, tt.facts)
			assert.Equal(t, tt.want, v.Decision, v.Decision.String())
			assert.Equal(t, tt.nonPublic, v.NonPublic)
			assert.Equal(t, tt.want == Allowed, v.Allowed())
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "denied_not_logged_in", DeniedNotLoggedIn.String())
	assert.Equal(t, "denied_not_in_groups", DeniedNotInGroups.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
