package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/target/oidc-gate/internal/mocks/auth"
)

func TestVerifier_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v := NewVerifier(mocks.NewMemoryInternals(), []byte("k"))

	for _, data := range []string{"", "https://www.example.edu/", "https://www.example.edu/a?b=c&d=é"} {
		sig, err := v.Create(ctx, data)
		require.NoError(t, err)
		assert.Len(t, sig, 10)

		ok, err := v.Check(ctx, sig, data)
		require.NoError(t, err)
		assert.True(t, ok, "verifier must round trip for %q", data)

		ok, err = v.Check(ctx, sig, data+"x")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestVerifier_CheckWithoutSecret(t *testing.T) {
	internals := mocks.NewMemoryInternals()
	v := NewVerifier(internals, nil)

	ok, err := v.Check(context.Background(), "0123456789", "https://www.example.edu/")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, internals.Sets, "Check never creates the secret")
}

func TestVerifier_SecretSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	internals := mocks.NewMemoryInternals()
	a := NewVerifier(internals, []byte("k"))
	b := NewVerifier(internals, []byte("k"))

	sig, err := a.Create(ctx, "https://www.example.edu/x")
	require.NoError(t, err)
	ok, err := b.Check(ctx, sig, "https://www.example.edu/x")
	require.NoError(t, err)
	assert.True(t, ok)

	// A different HMAC key rejects the verifier.
	c := NewVerifier(internals, []byte("other"))
	ok, err = c.Check(ctx, sig, "https://www.example.edu/x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifier_ConcurrentCreateWritesOnce(t *testing.T) {
	ctx := context.Background()
	internals := mocks.NewMemoryInternals()
	v := NewVerifier(internals, []byte("k"))

	var wg sync.WaitGroup
	sigs := make([]string, 16)
	for i := range sigs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sig, err := v.Create(ctx, "same")
			assert.NoError(t, err)
			sigs[i] = sig
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, internals.Sets)
	for _, s := range sigs {
		assert.Equal(t, sigs[0], s)
	}
}

type failingInternals struct{}

func (failingInternals) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("db down")
}

func (failingInternals) SetIfAbsent(context.Context, string, string) (string, error) {
	return "", errors.New("db down")
}

func TestVerifier_StoreErrors(t *testing.T) {
	v := NewVerifier(failingInternals{}, nil)
	_, err := v.Create(context.Background(), "x")
	assert.Error(t, err)
	_, err = v.Check(context.Background(), "x", "x")
	assert.Error(t, err)
}
