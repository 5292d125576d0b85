package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/target/oidc-gate/internal/ports"
)

const verifierSecretKey = "verifier_secret"

// Verifier signs return URLs so they survive a round trip through the
// login/logout endpoints without being forged. The secret is site-wide and
// stored server-side, so no session is needed for anonymous visitors.
type Verifier struct {
	store ports.InternalsStore
	key   []byte

	group  singleflight.Group
	mu     sync.RWMutex
	secret string
}

// NewVerifier constructs a Verifier. key salts the HMAC; it defaults to "nonce".
func NewVerifier(store ports.InternalsStore, key []byte) *Verifier {
	if store == nil {
		panic("NewVerifier: store is required")
	}
	if len(key) == 0 {
		key = []byte("nonce")
	}
	return &Verifier{store: store, key: key}
}

// Create returns the verifier for data, generating the site secret on first use.
func (v *Verifier) Create(ctx context.Context, data string) (string, error) {
	secret, err := v.ensureSecret(ctx)
	if err != nil {
		return "", err
	}
	return v.digest(secret, data), nil
}

// Check reports whether verifier was produced by Create for data.
// It is false while no secret exists.
func (v *Verifier) Check(ctx context.Context, verifier, data string) (bool, error) {
	secret, ok, err := v.loadSecret(ctx)
	if err != nil || !ok {
		return false, err
	}
	want := v.digest(secret, data)
	return subtle.ConstantTimeCompare([]byte(verifier), []byte(want)) == 1, nil
}

func (v *Verifier) digest(secret, data string) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(secret + data))
	sum := hex.EncodeToString(mac.Sum(nil))
	return sum[len(sum)-12 : len(sum)-2]
}

func (v *Verifier) cached() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.secret
}

func (v *Verifier) remember(secret string) {
	v.mu.Lock()
	v.secret = secret
	v.mu.Unlock()
}

func (v *Verifier) loadSecret(ctx context.Context) (string, bool, error) {
	if s := v.cached(); s != "" {
		return s, true, nil
	}
	s, ok, err := v.store.Get(ctx, verifierSecretKey)
	if err != nil {
		return "", false, fmt.Errorf("load verifier secret: %w", err)
	}
	if ok && s != "" {
		v.remember(s)
		return s, true, nil
	}
	return "", false, nil
}

func (v *Verifier) ensureSecret(ctx context.Context) (string, error) {
	if s, ok, err := v.loadSecret(ctx); err != nil || ok {
		return s, err
	}
	res, err, _ := v.group.Do(verifierSecretKey, func() (any, error) {
		candidate, err := randomSecret(32)
		if err != nil {
			return "", err
		}
		// Another instance may win the insert; the stored value is authoritative.
		stored, err := v.store.SetIfAbsent(ctx, verifierSecretKey, candidate)
		if err != nil {
			return "", fmt.Errorf("store verifier secret: %w", err)
		}
		v.remember(stored)
		return stored, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate verifier secret: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(b)[:n], nil
}
