package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/oidc-gate/internal/errors"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"everyone with group", []string{SentinelEveryone, "groupA"}, []string{"groupA"}},
		{"both sentinels", []string{SentinelEveryone, SentinelLoggedIn}, []string{SentinelLoggedIn}},
		{"logged in with group", []string{SentinelLoggedIn, "groupA"}, []string{"groupA"}},
		{"all three", []string{SentinelEveryone, SentinelLoggedIn, "groupA", "groupB"}, []string{"groupA", "groupB"}},
		{"sole sentinel kept", []string{SentinelEveryone}, []string{SentinelEveryone}},
		{"dedupe and trim", []string{" groupA", "groupA", ""}, []string{"groupA"}},
		{"empty stays empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestValidateChoices(t *testing.T) {
	available := AvailableGroups([]string{"staff", "faculty"})

	got, err := ValidateChoices([]string{"staff", "faculty"}, available)
	require.NoError(t, err)
	assert.Equal(t, []string{"staff", "faculty"}, got)

	got, err = ValidateChoices([]string{SentinelLoggedIn}, available)
	require.NoError(t, err)
	assert.Equal(t, []string{SentinelLoggedIn}, got)

	for name, in := range map[string][]string{
		"empty":          {},
		"mixed sentinel": {SentinelEveryone, "staff"},
		"both sentinels": {SentinelEveryone, SentinelLoggedIn},
		"unknown group":  {"admins"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateChoices(in, available)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, "groups", apperrors.GetField(err))
		})
	}
}

func TestAvailableGroups(t *testing.T) {
	assert.Equal(t,
		[]string{SentinelEveryone, SentinelLoggedIn, "staff", "faculty"},
		AvailableGroups([]string{"staff", " faculty", "staff", ""}))
	assert.Equal(t, "Everyone", Label(SentinelEveryone))
	assert.Equal(t, "Logged-in Users", Label(SentinelLoggedIn))
	assert.Equal(t, "staff", Label("staff"))
}
