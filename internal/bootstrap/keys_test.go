package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/target/oidc-gate/internal/mocks/auth"
	"github.com/target/oidc-gate/internal/service"
)

func TestDeriveKey(t *testing.T) {
	raw := strings.Repeat("ab", 32)
	want, err := hex.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, want, DeriveKey(raw))

	sum := sha256.Sum256([]byte("passphrase"))
	assert.Equal(t, sum[:], DeriveKey("passphrase"))

	// Short hex is hashed, not decoded.
	assert.Len(t, DeriveKey("abcd"), keySize)
}

func TestResolveKey(t *testing.T) {
	key, err := resolveKey("APP_NATIVE_COOKIE_KEY", "passphrase", nil)
	require.NoError(t, err)
	assert.Equal(t, DeriveKey("passphrase"), key)

	a, err := resolveKey("APP_NATIVE_COOKIE_KEY", "", discardLogger())
	require.NoError(t, err)
	b, err := resolveKey("APP_NATIVE_COOKIE_KEY", "", discardLogger())
	require.NoError(t, err)
	assert.Len(t, a, keySize)
	assert.NotEqual(t, a, b)
}

func TestVerifierKey_SharedAcrossReplicas(t *testing.T) {
	assert.Nil(t, verifierKey(""))
	assert.Equal(t, DeriveKey("passphrase"), verifierKey("passphrase"))

	store := mocks.NewMemoryInternals()
	ctx := context.Background()
	target := "https://www.example.edu/news/staff-handbook"

	for _, configured := range []string{"", "passphrase"} {
		replicaA := service.NewVerifier(store, verifierKey(configured))
		replicaB := service.NewVerifier(store, verifierKey(configured))

		v, err := replicaA.Create(ctx, target)
		require.NoError(t, err)
		ok, err := replicaB.Check(ctx, v, target)
		require.NoError(t, err)
		assert.True(t, ok, "key %q", configured)
	}
}
